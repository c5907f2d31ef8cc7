package reposync_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/gitrepo"
	"github.com/queensberry-research/reposync/internal/reposync"
)

const (
	repositoryRemoteConstant         = "git@github.com:queensberry-research/infrastructure.git"
	repositoryPathConstant           = "/srv/checkouts/infrastructure"
	recordedCloneTemplateConstant    = "clone %s %s"
	recordedDefaultBranchTemplate    = "default-branch %s"
	recordedForceCheckoutTemplate    = "force-checkout %s %s"
	recordedPullTemplateConstant     = "pull %s"
	recordedSubmoduleUpdateTemplate  = "submodule-update %s"
	recordedListSubmodulesTemplate   = "list-submodules %s"
	recordedCheckoutRevisionTemplate = "checkout %s %s"
	recordedHeadCommitTemplate       = "head %s"
	resolvedHeadCommitConstant       = "0f0e0d0c0b0a"
	defaultBranchNameConstant        = "main"
	pinnedRevisionConstant           = "v2.4.0"
	firmwareSubmoduleNameConstant    = "firmware"
	telemetrySubmoduleNameConstant   = "telemetry"
	firmwareSubmodulePathConstant    = "vendor/firmware"
	telemetrySubmodulePathConstant   = "vendor/telemetry"
	firmwarePinnedRevisionConstant   = "v1.1.0"
	telemetryPinnedRevisionConstant  = "v3.0.2"
)

type fakeGitPreflight struct {
	ensureError error
	probeCount  int
}

func (preflight *fakeGitPreflight) EnsureGit(context.Context) error {
	preflight.probeCount++
	return preflight.ensureError
}

type fakeFileSystem struct {
	existingPaths map[string]bool
	statError     error
}

func (fileSystem *fakeFileSystem) Stat(path string) (fs.FileInfo, error) {
	if fileSystem.statError != nil {
		return nil, fileSystem.statError
	}
	if fileSystem.existingPaths[path] {
		return nil, nil
	}
	return nil, fs.ErrNotExist
}

type fakeRepositoryManager struct {
	recordedOperations []string
	defaultBranchName  string
	submodulesByPath   map[string][]gitrepo.SubmoduleStatus
	pullErrorsByPath   map[string]error
	checkoutErrors     map[string]error
}

func (manager *fakeRepositoryManager) record(operationTemplate string, operationArguments ...any) {
	manager.recordedOperations = append(manager.recordedOperations, fmt.Sprintf(operationTemplate, operationArguments...))
}

func (manager *fakeRepositoryManager) CloneRecursive(_ context.Context, remoteURL string, localPath string) error {
	manager.record(recordedCloneTemplateConstant, remoteURL, localPath)
	return nil
}

func (manager *fakeRepositoryManager) DefaultBranch(_ context.Context, repositoryPath string) (string, error) {
	manager.record(recordedDefaultBranchTemplate, repositoryPath)
	return manager.defaultBranchName, nil
}

func (manager *fakeRepositoryManager) ForceCheckout(_ context.Context, repositoryPath string, reference string) error {
	manager.record(recordedForceCheckoutTemplate, repositoryPath, reference)
	return nil
}

func (manager *fakeRepositoryManager) CheckoutRevision(_ context.Context, repositoryPath string, revision string) error {
	manager.record(recordedCheckoutRevisionTemplate, repositoryPath, revision)
	return manager.checkoutErrors[repositoryPath+" "+revision]
}

func (manager *fakeRepositoryManager) PullFastForwardOnly(_ context.Context, repositoryPath string) error {
	manager.record(recordedPullTemplateConstant, repositoryPath)
	return manager.pullErrorsByPath[repositoryPath]
}

func (manager *fakeRepositoryManager) UpdateSubmodulesRecursive(_ context.Context, repositoryPath string) error {
	manager.record(recordedSubmoduleUpdateTemplate, repositoryPath)
	return nil
}

func (manager *fakeRepositoryManager) ListSubmodules(_ context.Context, repositoryPath string) ([]gitrepo.SubmoduleStatus, error) {
	manager.record(recordedListSubmodulesTemplate, repositoryPath)
	return manager.submodulesByPath[repositoryPath], nil
}

func (manager *fakeRepositoryManager) ResolveHeadCommit(_ context.Context, repositoryPath string) (string, error) {
	manager.record(recordedHeadCommitTemplate, repositoryPath)
	return resolvedHeadCommitConstant, nil
}

func newSynchronizerUnderTest(testInstance *testing.T, manager *fakeRepositoryManager, fileSystem *fakeFileSystem) *reposync.Synchronizer {
	testInstance.Helper()

	synchronizerInstance, creationError := reposync.NewSynchronizer(reposync.Dependencies{
		Logger:            zap.NewNop(),
		RepositoryManager: manager,
		Preflight:         &fakeGitPreflight{},
		FileSystem:        fileSystem,
	})
	require.NoError(testInstance, creationError)
	return synchronizerInstance
}

func TestNewSynchronizerValidatesDependencies(testInstance *testing.T) {
	testCases := []struct {
		name         string
		dependencies reposync.Dependencies
	}{
		{
			name:         "missing_repository_manager",
			dependencies: reposync.Dependencies{Preflight: &fakeGitPreflight{}},
		},
		{
			name:         "missing_preflight",
			dependencies: reposync.Dependencies{RepositoryManager: &fakeRepositoryManager{}},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			synchronizerInstance, creationError := reposync.NewSynchronizer(testCase.dependencies)
			require.Error(subtestInstance, creationError)
			require.Nil(subtestInstance, synchronizerInstance)
		})
	}
}

func TestSynchronizeClonesAbsentRepository(testInstance *testing.T) {
	manager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, &fakeFileSystem{})

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
	})
	require.NoError(testInstance, synchronizationError)

	expectedOperations := []string{
		fmt.Sprintf(recordedCloneTemplateConstant, repositoryRemoteConstant, repositoryPathConstant),
		fmt.Sprintf(recordedDefaultBranchTemplate, repositoryPathConstant),
		fmt.Sprintf(recordedForceCheckoutTemplate, repositoryPathConstant, defaultBranchNameConstant),
		fmt.Sprintf(recordedPullTemplateConstant, repositoryPathConstant),
		fmt.Sprintf(recordedSubmoduleUpdateTemplate, repositoryPathConstant),
		fmt.Sprintf(recordedListSubmodulesTemplate, repositoryPathConstant),
		fmt.Sprintf(recordedHeadCommitTemplate, repositoryPathConstant),
	}
	require.Equal(testInstance, expectedOperations, manager.recordedOperations)
}

func TestSynchronizeUpdatesPresentRepositoryInPlace(testInstance *testing.T) {
	manager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, fileSystem)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
	})
	require.NoError(testInstance, synchronizationError)
	require.NotContains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedCloneTemplateConstant, repositoryRemoteConstant, repositoryPathConstant),
	)
	require.Contains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedPullTemplateConstant, repositoryPathConstant),
	)
}

func TestSynchronizeIsIdempotentAcrossRepeatedRuns(testInstance *testing.T) {
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	target := reposync.RepositoryTarget{RemoteURL: repositoryRemoteConstant, LocalPath: repositoryPathConstant}

	firstManager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}
	firstError := newSynchronizerUnderTest(testInstance, firstManager, fileSystem).Synchronize(context.Background(), target)
	require.NoError(testInstance, firstError)

	secondManager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}
	secondError := newSynchronizerUnderTest(testInstance, secondManager, fileSystem).Synchronize(context.Background(), target)
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, firstManager.recordedOperations, secondManager.recordedOperations)
}

func TestSynchronizeResetsNestedSubmodules(testInstance *testing.T) {
	nestedSubmodulePath := filepath.Join(repositoryPathConstant, firmwareSubmodulePathConstant)
	manager := &fakeRepositoryManager{
		defaultBranchName: defaultBranchNameConstant,
		submodulesByPath: map[string][]gitrepo.SubmoduleStatus{
			repositoryPathConstant: {
				{Path: firmwareSubmodulePathConstant, State: gitrepo.SubmoduleStateInSync},
				{Path: telemetrySubmodulePathConstant, State: gitrepo.SubmoduleStateUninitialized},
			},
		},
	}
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, fileSystem)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
	})
	require.NoError(testInstance, synchronizationError)

	require.Contains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedPullTemplateConstant, nestedSubmodulePath),
	)
	require.NotContains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedPullTemplateConstant, filepath.Join(repositoryPathConstant, telemetrySubmodulePathConstant)),
	)
}

func TestSynchronizePinsRequestedRevision(testInstance *testing.T) {
	manager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, fileSystem)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
		Revision:  pinnedRevisionConstant,
	})
	require.NoError(testInstance, synchronizationError)
	require.Contains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedCheckoutRevisionTemplate, repositoryPathConstant, pinnedRevisionConstant),
	)
}

func TestSynchronizePinsSubmodulesIndependently(testInstance *testing.T) {
	firmwarePath := filepath.Join(repositoryPathConstant, firmwareSubmodulePathConstant)
	telemetryPath := filepath.Join(repositoryPathConstant, telemetrySubmodulePathConstant)
	manager := &fakeRepositoryManager{
		defaultBranchName: defaultBranchNameConstant,
		submodulesByPath: map[string][]gitrepo.SubmoduleStatus{
			repositoryPathConstant: {
				{Path: firmwareSubmodulePathConstant, State: gitrepo.SubmoduleStateUninitialized},
				{Path: telemetrySubmodulePathConstant, State: gitrepo.SubmoduleStateUninitialized},
			},
		},
		checkoutErrors: map[string]error{
			firmwarePath + " " + firmwarePinnedRevisionConstant: errors.New("checkout refused"),
		},
	}
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, fileSystem)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
		SubmoduleRevisions: map[string]string{
			firmwareSubmoduleNameConstant:  firmwarePinnedRevisionConstant,
			telemetrySubmoduleNameConstant: telemetryPinnedRevisionConstant,
		},
	})
	require.Error(testInstance, synchronizationError)
	require.Contains(
		testInstance,
		manager.recordedOperations,
		fmt.Sprintf(recordedCheckoutRevisionTemplate, telemetryPath, telemetryPinnedRevisionConstant),
	)
}

func TestSynchronizeReportsSubmoduleResolutionFailures(testInstance *testing.T) {
	testCases := []struct {
		name               string
		submoduleName      string
		recordedSubmodules []gitrepo.SubmoduleStatus
	}{
		{
			name:               "no_matching_submodule",
			submoduleName:      "missing",
			recordedSubmodules: []gitrepo.SubmoduleStatus{{Path: firmwareSubmodulePathConstant}},
		},
		{
			name:          "ambiguous_submodule_name",
			submoduleName: "ware",
			recordedSubmodules: []gitrepo.SubmoduleStatus{
				{Path: "vendor/firmware"},
				{Path: "vendor/middleware"},
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			manager := &fakeRepositoryManager{
				defaultBranchName: defaultBranchNameConstant,
				submodulesByPath: map[string][]gitrepo.SubmoduleStatus{
					repositoryPathConstant: testCase.recordedSubmodules,
				},
			}
			fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
			synchronizerInstance := newSynchronizerUnderTest(subtestInstance, manager, fileSystem)

			synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
				RemoteURL:          repositoryRemoteConstant,
				LocalPath:          repositoryPathConstant,
				SubmoduleRevisions: map[string]string{testCase.submoduleName: pinnedRevisionConstant},
			})

			var resolutionError reposync.SubmoduleResolutionError
			require.ErrorAs(subtestInstance, synchronizationError, &resolutionError)
			require.Equal(subtestInstance, testCase.submoduleName, resolutionError.SubmoduleName)
		})
	}
}

func TestSynchronizePropagatesPreflightFailure(testInstance *testing.T) {
	preflightFailure := errors.New("git installation failed")
	manager := &fakeRepositoryManager{defaultBranchName: defaultBranchNameConstant}

	synchronizerInstance, creationError := reposync.NewSynchronizer(reposync.Dependencies{
		Logger:            zap.NewNop(),
		RepositoryManager: manager,
		Preflight:         &fakeGitPreflight{ensureError: preflightFailure},
		FileSystem:        &fakeFileSystem{},
	})
	require.NoError(testInstance, creationError)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
	})
	require.ErrorIs(testInstance, synchronizationError, preflightFailure)
	require.Empty(testInstance, manager.recordedOperations)
}
