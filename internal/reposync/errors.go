package reposync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	divergedHistoryErrorTemplateConstant    = "branch %s in %s cannot fast-forward to its remote counterpart"
	unknownRevisionErrorTemplateConstant    = "revision %s does not exist in %s"
	submoduleAmbiguousErrorTemplateConstant = "submodule name %s matches multiple paths in %s: %s"
	submoduleNotFoundErrorTemplateConstant  = "submodule name %s matches no path in %s"
	matchingPathsSeparatorConstant          = ", "
	fastForwardRefusalMarkerConstant        = "not possible to fast-forward"
	divergentBranchesMarkerConstant         = "divergent branches"
	unknownRevisionMarkerConstant           = "did not match any"
	unknownRevisionPathspecMarkerConstant   = "unknown revision or path not in the working tree"
)

// DivergedHistoryError indicates the local default branch cannot fast-forward to its remote.
type DivergedHistoryError struct {
	RepositoryPath string
	BranchName     string
	Cause          error
}

// Error describes the divergence.
func (divergence DivergedHistoryError) Error() string {
	return fmt.Sprintf(divergedHistoryErrorTemplateConstant, divergence.BranchName, divergence.RepositoryPath)
}

// Unwrap exposes the underlying command failure.
func (divergence DivergedHistoryError) Unwrap() error {
	return divergence.Cause
}

// UnknownRevisionError indicates a requested version label does not exist in the repository.
type UnknownRevisionError struct {
	RepositoryPath string
	Revision       string
	Cause          error
}

// Error describes the missing revision.
func (unknown UnknownRevisionError) Error() string {
	return fmt.Sprintf(unknownRevisionErrorTemplateConstant, unknown.Revision, unknown.RepositoryPath)
}

// Unwrap exposes the underlying command failure.
func (unknown UnknownRevisionError) Unwrap() error {
	return unknown.Cause
}

// SubmoduleResolutionError indicates a submodule name substring matched zero or multiple paths.
type SubmoduleResolutionError struct {
	RepositoryPath string
	SubmoduleName  string
	MatchingPaths  []string
}

// Error describes the resolution failure.
func (resolution SubmoduleResolutionError) Error() string {
	if len(resolution.MatchingPaths) == 0 {
		return fmt.Sprintf(submoduleNotFoundErrorTemplateConstant, resolution.SubmoduleName, resolution.RepositoryPath)
	}
	return fmt.Sprintf(
		submoduleAmbiguousErrorTemplateConstant,
		resolution.SubmoduleName,
		resolution.RepositoryPath,
		strings.Join(resolution.MatchingPaths, matchingPathsSeparatorConstant),
	)
}

// classifyPullError converts a fast-forward refusal into DivergedHistoryError and
// leaves every other failure untouched.
func classifyPullError(repositoryPath string, branchName string, pullError error) error {
	var commandFailure execshell.CommandFailedError
	if errors.As(pullError, &commandFailure) {
		loweredStandardError := strings.ToLower(commandFailure.Result.StandardError)
		if strings.Contains(loweredStandardError, fastForwardRefusalMarkerConstant) || strings.Contains(loweredStandardError, divergentBranchesMarkerConstant) {
			return DivergedHistoryError{RepositoryPath: repositoryPath, BranchName: branchName, Cause: pullError}
		}
	}
	return pullError
}

// classifyCheckoutError converts a missing-ref checkout failure into UnknownRevisionError.
func classifyCheckoutError(repositoryPath string, revision string, checkoutError error) error {
	var commandFailure execshell.CommandFailedError
	if errors.As(checkoutError, &commandFailure) {
		loweredStandardError := strings.ToLower(commandFailure.Result.StandardError)
		if strings.Contains(loweredStandardError, unknownRevisionMarkerConstant) || strings.Contains(loweredStandardError, unknownRevisionPathspecMarkerConstant) {
			return UnknownRevisionError{RepositoryPath: repositoryPath, Revision: revision, Cause: checkoutError}
		}
	}
	return checkoutError
}
