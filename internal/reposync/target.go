package reposync

import (
	"errors"
	"strings"
)

const (
	targetRemoteRequiredMessageConstant = "repository target requires a remote url"
	targetPathRequiredMessageConstant   = "repository target requires a local path"
)

// RepositoryTarget describes the desired state of one local working copy.
// Its identity is the local path; the filesystem state of the checkout is the
// only persisted state between runs.
type RepositoryTarget struct {
	// RemoteURL is the git remote to clone from or pull against.
	RemoteURL string
	// LocalPath is the working copy location on disk.
	LocalPath string
	// Revision optionally pins the superproject to a branch, tag, or commit.
	Revision string
	// SubmoduleRevisions maps submodule names to optional version labels. An
	// empty label lets the submodule float to the commit recorded by the
	// superproject.
	SubmoduleRevisions map[string]string
}

// Validate confirms the target carries the required coordinates.
func (target RepositoryTarget) Validate() error {
	if len(strings.TrimSpace(target.RemoteURL)) == 0 {
		return errors.New(targetRemoteRequiredMessageConstant)
	}
	if len(strings.TrimSpace(target.LocalPath)) == 0 {
		return errors.New(targetPathRequiredMessageConstant)
	}
	return nil
}
