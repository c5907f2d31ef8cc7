package gitrepo

import (
	"context"
	"errors"
	"strings"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "repository manager requires a git executor"

	cloneSubcommandConstant           = "clone"
	recurseSubmodulesFlagConstant     = "--recurse-submodules"
	checkoutSubcommandConstant        = "checkout"
	forceFlagConstant                 = "--force"
	pullSubcommandConstant            = "pull"
	fastForwardOnlyFlagConstant       = "--ff-only"
	pruneFlagConstant                 = "--prune"
	tagsFlagConstant                  = "--tags"
	submoduleSubcommandConstant       = "submodule"
	submoduleUpdateSubcommandConstant = "update"
	submoduleInitFlagConstant         = "--init"
	recursiveFlagConstant             = "--recursive"
	submoduleStatusSubcommandConstant = "status"
	symbolicRefSubcommandConstant     = "symbolic-ref"
	revParseSubcommandConstant        = "rev-parse"
	headReferenceConstant             = "HEAD"
	originHeadReferenceConstant       = "refs/remotes/origin/HEAD"
	remoteHeadReferencePrefixConstant = "refs/remotes/origin/"
	gitVersionFlagConstant            = "--version"
	emptyDefaultBranchMessageConstant = "could not determine the remote default branch"
	emptyHeadCommitMessageConstant    = "could not resolve the current HEAD commit"
	repositoryPathRequiredConstant    = "repository path must be provided"
	remoteURLRequiredMessageConstant  = "remote url must be provided"
	localPathRequiredMessageConstant  = "local path must be provided"
	referenceRequiredMessageConstant  = "reference must be provided"
)

// GitExecutor exposes the subset of shell execution used by the repository manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs repository-level git operations through a shell executor.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, errors.New(executorNotConfiguredMessageConstant)
	}
	return &RepositoryManager{executor: executor}, nil
}

// CheckGitAvailable probes for a working git client.
func (manager *RepositoryManager) CheckGitAvailable(executionContext context.Context) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitVersionFlagConstant},
	})
	return executionError
}

// CloneRecursive clones the remote URL into the local path including all nested submodules.
func (manager *RepositoryManager) CloneRecursive(executionContext context.Context, remoteURL string, localPath string) error {
	if len(strings.TrimSpace(remoteURL)) == 0 {
		return errors.New(remoteURLRequiredMessageConstant)
	}
	if len(strings.TrimSpace(localPath)) == 0 {
		return errors.New(localPathRequiredMessageConstant)
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{cloneSubcommandConstant, recurseSubmodulesFlagConstant, remoteURL, localPath},
	})
	return executionError
}

// DefaultBranch resolves the remote default branch recorded at refs/remotes/origin/HEAD.
func (manager *RepositoryManager) DefaultBranch(executionContext context.Context, repositoryPath string) (string, error) {
	if len(strings.TrimSpace(repositoryPath)) == 0 {
		return "", errors.New(repositoryPathRequiredConstant)
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{symbolicRefSubcommandConstant, originHeadReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}

	branchName := strings.TrimSpace(executionResult.StandardOutput)
	branchName = strings.TrimPrefix(branchName, remoteHeadReferencePrefixConstant)
	if len(branchName) == 0 {
		return "", errors.New(emptyDefaultBranchMessageConstant)
	}
	return branchName, nil
}

// ForceCheckout checks out the reference, discarding local modifications to tracked files.
func (manager *RepositoryManager) ForceCheckout(executionContext context.Context, repositoryPath string, reference string) error {
	if len(strings.TrimSpace(reference)) == 0 {
		return errors.New(referenceRequiredMessageConstant)
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{checkoutSubcommandConstant, forceFlagConstant, reference},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// CheckoutRevision checks out the requested revision without forcing.
func (manager *RepositoryManager) CheckoutRevision(executionContext context.Context, repositoryPath string, revision string) error {
	if len(strings.TrimSpace(revision)) == 0 {
		return errors.New(referenceRequiredMessageConstant)
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{checkoutSubcommandConstant, revision},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// PullFastForwardOnly pulls the current branch, refusing anything beyond a fast-forward,
// while pruning stale remote branches and fetching tags.
func (manager *RepositoryManager) PullFastForwardOnly(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{pullSubcommandConstant, fastForwardOnlyFlagConstant, forceFlagConstant, pruneFlagConstant, tagsFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// UpdateSubmodulesRecursive initializes and updates all submodules to the commits
// recorded by the superproject, at every nesting depth.
func (manager *RepositoryManager) UpdateSubmodulesRecursive(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{submoduleSubcommandConstant, submoduleUpdateSubcommandConstant, submoduleInitFlagConstant, recursiveFlagConstant},
		WorkingDirectory: repositoryPath,
	})
	return executionError
}

// ListSubmodules reports the direct submodules of the repository as recorded by git submodule status.
func (manager *RepositoryManager) ListSubmodules(executionContext context.Context, repositoryPath string) ([]SubmoduleStatus, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{submoduleSubcommandConstant, submoduleStatusSubcommandConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return nil, executionError
	}
	return ParseSubmoduleStatus(executionResult.StandardOutput), nil
}

// ResolveHeadCommit returns the commit hash the repository HEAD currently points at.
func (manager *RepositoryManager) ResolveHeadCommit(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{revParseSubcommandConstant, headReferenceConstant},
		WorkingDirectory: repositoryPath,
	})
	if executionError != nil {
		return "", executionError
	}

	headCommit := strings.TrimSpace(executionResult.StandardOutput)
	if len(headCommit) == 0 {
		return "", errors.New(emptyHeadCommitMessageConstant)
	}
	return headCommit, nil
}
