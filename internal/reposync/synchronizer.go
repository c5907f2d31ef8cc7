package reposync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/gitrepo"
)

const (
	repositoryManagerRequiredMessageConstant = "synchronizer requires a repository manager"
	preflightRequiredMessageConstant         = "synchronizer requires a git preflight"
	cloningRepositoryMessageConstant         = "cloning repository"
	repositoryPresentMessageConstant         = "repository already present; updating in place"
	pinningRevisionMessageConstant           = "pinning repository revision"
	pinningSubmoduleMessageConstant          = "pinning submodule revision"
	submodulePinFailedMessageConstant        = "submodule pin failed"
	repositorySynchronizedMessageConstant    = "repository synchronized"
	logFieldRemoteConstant                   = "remote"
	logFieldPathConstant                     = "path"
	logFieldRevisionConstant                 = "revision"
	logFieldSubmoduleConstant                = "submodule"
	logFieldCommitConstant                   = "commit"
)

// RepositoryManager exposes the git operations the synchronizer depends on.
type RepositoryManager interface {
	CloneRecursive(executionContext context.Context, remoteURL string, localPath string) error
	DefaultBranch(executionContext context.Context, repositoryPath string) (string, error)
	ForceCheckout(executionContext context.Context, repositoryPath string, reference string) error
	CheckoutRevision(executionContext context.Context, repositoryPath string, revision string) error
	PullFastForwardOnly(executionContext context.Context, repositoryPath string) error
	UpdateSubmodulesRecursive(executionContext context.Context, repositoryPath string) error
	ListSubmodules(executionContext context.Context, repositoryPath string) ([]gitrepo.SubmoduleStatus, error)
	ResolveHeadCommit(executionContext context.Context, repositoryPath string) (string, error)
}

// GitPreflight guarantees a usable git client before any repository operation runs.
type GitPreflight interface {
	EnsureGit(executionContext context.Context) error
}

// FileSystem exposes the filesystem probe used for the existence check.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
}

type osFileSystem struct{}

func (osFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Dependencies configures collaborators for the synchronizer.
type Dependencies struct {
	Logger            *zap.Logger
	RepositoryManager RepositoryManager
	Preflight         GitPreflight
	FileSystem        FileSystem
}

// Synchronizer brings a local working copy into the state implied by a
// RepositoryTarget: fresh clone when absent, forced update-in-place when
// present, then optional revision pins for the superproject and named
// submodules. Concurrent synchronization of the same local path is not
// guarded against.
type Synchronizer struct {
	logger            *zap.Logger
	repositoryManager RepositoryManager
	preflight         GitPreflight
	fileSystem        FileSystem
}

// NewSynchronizer constructs a Synchronizer, defaulting the logger and filesystem.
func NewSynchronizer(dependencies Dependencies) (*Synchronizer, error) {
	if dependencies.RepositoryManager == nil {
		return nil, errors.New(repositoryManagerRequiredMessageConstant)
	}
	if dependencies.Preflight == nil {
		return nil, errors.New(preflightRequiredMessageConstant)
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = osFileSystem{}
	}

	return &Synchronizer{
		logger:            logger,
		repositoryManager: dependencies.RepositoryManager,
		preflight:         dependencies.Preflight,
		fileSystem:        fileSystem,
	}, nil
}

// Synchronize ensures the target's local path is a working copy matching the
// requested state. The update step is applied even to a freshly cloned or
// untouched checkout, which makes repeat invocations idempotent and discards
// manual local edits without prompting.
func (synchronizer *Synchronizer) Synchronize(executionContext context.Context, target RepositoryTarget) error {
	if validationError := target.Validate(); validationError != nil {
		return validationError
	}

	if preflightError := synchronizer.preflight.EnsureGit(executionContext); preflightError != nil {
		return preflightError
	}

	if _, statError := synchronizer.fileSystem.Stat(target.LocalPath); statError != nil {
		if !errors.Is(statError, fs.ErrNotExist) {
			return statError
		}
		synchronizer.logger.Info(
			cloningRepositoryMessageConstant,
			zap.String(logFieldRemoteConstant, target.RemoteURL),
			zap.String(logFieldPathConstant, target.LocalPath),
		)
		if cloneError := synchronizer.repositoryManager.CloneRecursive(executionContext, target.RemoteURL, target.LocalPath); cloneError != nil {
			return cloneError
		}
	} else {
		synchronizer.logger.Info(
			repositoryPresentMessageConstant,
			zap.String(logFieldPathConstant, target.LocalPath),
		)
	}

	if updateError := synchronizer.forceSynchronize(executionContext, target.LocalPath); updateError != nil {
		return updateError
	}

	if len(strings.TrimSpace(target.Revision)) > 0 {
		synchronizer.logger.Info(
			pinningRevisionMessageConstant,
			zap.String(logFieldPathConstant, target.LocalPath),
			zap.String(logFieldRevisionConstant, target.Revision),
		)
		if checkoutError := synchronizer.repositoryManager.CheckoutRevision(executionContext, target.LocalPath, target.Revision); checkoutError != nil {
			return classifyCheckoutError(target.LocalPath, target.Revision, checkoutError)
		}
	}

	if pinError := synchronizer.pinSubmodules(executionContext, target); pinError != nil {
		return pinError
	}

	headCommit, headError := synchronizer.repositoryManager.ResolveHeadCommit(executionContext, target.LocalPath)
	if headError != nil {
		return headError
	}
	synchronizer.logger.Info(
		repositorySynchronizedMessageConstant,
		zap.String(logFieldPathConstant, target.LocalPath),
		zap.String(logFieldCommitConstant, headCommit),
	)

	return nil
}

// forceSynchronize resets the checkout onto the remote default branch, updates
// submodules to the superproject-recorded commits, then repeats the reset for
// every submodule at every nesting depth.
func (synchronizer *Synchronizer) forceSynchronize(executionContext context.Context, repositoryPath string) error {
	if resetError := synchronizer.resetToRemoteDefault(executionContext, repositoryPath); resetError != nil {
		return resetError
	}
	if submoduleError := synchronizer.repositoryManager.UpdateSubmodulesRecursive(executionContext, repositoryPath); submoduleError != nil {
		return submoduleError
	}
	return synchronizer.resetSubmodulesRecursively(executionContext, repositoryPath)
}

func (synchronizer *Synchronizer) resetToRemoteDefault(executionContext context.Context, repositoryPath string) error {
	defaultBranch, branchError := synchronizer.repositoryManager.DefaultBranch(executionContext, repositoryPath)
	if branchError != nil {
		return branchError
	}
	if checkoutError := synchronizer.repositoryManager.ForceCheckout(executionContext, repositoryPath, defaultBranch); checkoutError != nil {
		return checkoutError
	}
	if pullError := synchronizer.repositoryManager.PullFastForwardOnly(executionContext, repositoryPath); pullError != nil {
		return classifyPullError(repositoryPath, defaultBranch, pullError)
	}
	return nil
}

func (synchronizer *Synchronizer) resetSubmodulesRecursively(executionContext context.Context, repositoryPath string) error {
	submoduleStatuses, listError := synchronizer.repositoryManager.ListSubmodules(executionContext, repositoryPath)
	if listError != nil {
		return listError
	}

	for _, submoduleStatus := range submoduleStatuses {
		if submoduleStatus.State == gitrepo.SubmoduleStateUninitialized {
			continue
		}
		submodulePath := filepath.Join(repositoryPath, submoduleStatus.Path)
		if resetError := synchronizer.resetToRemoteDefault(executionContext, submodulePath); resetError != nil {
			return resetError
		}
		if nestedError := synchronizer.resetSubmodulesRecursively(executionContext, submodulePath); nestedError != nil {
			return nestedError
		}
	}

	return nil
}

// pinSubmodules checks out requested labels in each named submodule. Pin
// failures are independent: every submodule is attempted and the failures are
// joined into the returned error.
func (synchronizer *Synchronizer) pinSubmodules(executionContext context.Context, target RepositoryTarget) error {
	pinnedSubmoduleNames := make([]string, 0, len(target.SubmoduleRevisions))
	for submoduleName, requestedRevision := range target.SubmoduleRevisions {
		if len(strings.TrimSpace(requestedRevision)) == 0 {
			continue
		}
		pinnedSubmoduleNames = append(pinnedSubmoduleNames, submoduleName)
	}
	if len(pinnedSubmoduleNames) == 0 {
		return nil
	}
	sort.Strings(pinnedSubmoduleNames)

	submoduleStatuses, listError := synchronizer.repositoryManager.ListSubmodules(executionContext, target.LocalPath)
	if listError != nil {
		return listError
	}

	var pinFailures []error
	for _, submoduleName := range pinnedSubmoduleNames {
		requestedRevision := target.SubmoduleRevisions[submoduleName]
		pinError := synchronizer.pinSubmodule(executionContext, target.LocalPath, submoduleName, requestedRevision, submoduleStatuses)
		if pinError != nil {
			synchronizer.logger.Warn(
				submodulePinFailedMessageConstant,
				zap.String(logFieldPathConstant, target.LocalPath),
				zap.String(logFieldSubmoduleConstant, submoduleName),
				zap.String(logFieldRevisionConstant, requestedRevision),
				zap.Error(pinError),
			)
			pinFailures = append(pinFailures, pinError)
		}
	}

	return errors.Join(pinFailures...)
}

func (synchronizer *Synchronizer) pinSubmodule(executionContext context.Context, repositoryPath string, submoduleName string, requestedRevision string, submoduleStatuses []gitrepo.SubmoduleStatus) error {
	submodulePath, resolutionError := resolveSubmodulePath(repositoryPath, submoduleName, submoduleStatuses)
	if resolutionError != nil {
		return resolutionError
	}

	synchronizer.logger.Info(
		pinningSubmoduleMessageConstant,
		zap.String(logFieldPathConstant, submodulePath),
		zap.String(logFieldSubmoduleConstant, submoduleName),
		zap.String(logFieldRevisionConstant, requestedRevision),
	)

	if checkoutError := synchronizer.repositoryManager.CheckoutRevision(executionContext, submodulePath, requestedRevision); checkoutError != nil {
		return classifyCheckoutError(submodulePath, requestedRevision, checkoutError)
	}
	return nil
}

// resolveSubmodulePath matches the submodule name as a substring of the final
// path segment of each recorded submodule. Exactly one match is required; zero
// or multiple matches surface the ambiguity instead of guessing.
func resolveSubmodulePath(repositoryPath string, submoduleName string, submoduleStatuses []gitrepo.SubmoduleStatus) (string, error) {
	matchingPaths := []string{}
	for _, submoduleStatus := range submoduleStatuses {
		finalPathSegment := filepath.Base(submoduleStatus.Path)
		if strings.Contains(finalPathSegment, submoduleName) {
			matchingPaths = append(matchingPaths, submoduleStatus.Path)
		}
	}

	if len(matchingPaths) != 1 {
		return "", SubmoduleResolutionError{
			RepositoryPath: repositoryPath,
			SubmoduleName:  submoduleName,
			MatchingPaths:  matchingPaths,
		}
	}

	return filepath.Join(repositoryPath, matchingPaths[0]), nil
}
