package gitrepo

import (
	"strings"
)

const (
	submoduleStatusLineSeparatorConstant = "\n"
	submoduleStatePrefixCutsetConstant   = "-+U"
	submoduleStateUninitializedConstant  = '-'
	submoduleStateOutOfSyncConstant      = '+'
	submoduleStateConflictConstant       = 'U'
)

// SubmoduleState describes a submodule's relation to the commit recorded by the superproject.
type SubmoduleState string

// Submodule states reported by git submodule status prefixes.
const (
	SubmoduleStateInSync        SubmoduleState = "in-sync"
	SubmoduleStateUninitialized SubmoduleState = "uninitialized"
	SubmoduleStateOutOfSync     SubmoduleState = "out-of-sync"
	SubmoduleStateConflict      SubmoduleState = "conflict"
)

// SubmoduleStatus captures one line of git submodule status output.
type SubmoduleStatus struct {
	Path   string
	Commit string
	State  SubmoduleState
}

// ParseSubmoduleStatus interprets git submodule status output. Each line carries
// a one-character state prefix, the recorded commit, the on-disk path, and an
// optional describe suffix in parentheses.
func ParseSubmoduleStatus(statusOutput string) []SubmoduleStatus {
	statuses := []SubmoduleStatus{}
	for _, statusLine := range strings.Split(statusOutput, submoduleStatusLineSeparatorConstant) {
		if len(strings.TrimSpace(statusLine)) == 0 {
			continue
		}

		submoduleState := SubmoduleStateInSync
		switch statusLine[0] {
		case submoduleStateUninitializedConstant:
			submoduleState = SubmoduleStateUninitialized
		case submoduleStateOutOfSyncConstant:
			submoduleState = SubmoduleStateOutOfSync
		case submoduleStateConflictConstant:
			submoduleState = SubmoduleStateConflict
		}

		statusFields := strings.Fields(statusLine)
		if len(statusFields) < 2 {
			continue
		}

		statuses = append(statuses, SubmoduleStatus{
			Path:   statusFields[1],
			Commit: strings.TrimLeft(statusFields[0], submoduleStatePrefixCutsetConstant),
			State:  submoduleState,
		})
	}
	return statuses
}
