package reposync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queensberry-research/reposync/internal/execshell"
	"github.com/queensberry-research/reposync/internal/reposync"
)

const (
	fastForwardRefusalStandardErrorConstant = "fatal: Not possible to fast-forward, aborting."
	unknownRevisionStandardErrorConstant    = "error: pathspec 'v9.9.9' did not match any file(s) known to git"
	unrelatedFailureStandardErrorConstant   = "fatal: unable to access remote"
)

func commandFailureWithStandardError(standardError string) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit},
		Result:  execshell.ExecutionResult{StandardError: standardError, ExitCode: 1},
	}
}

func TestSynchronizeClassifiesFastForwardRefusal(testInstance *testing.T) {
	testCases := []struct {
		name           string
		pullError      error
		expectDiverged bool
	}{
		{
			name:           "fast_forward_refusal_becomes_diverged_history",
			pullError:      commandFailureWithStandardError(fastForwardRefusalStandardErrorConstant),
			expectDiverged: true,
		},
		{
			name:           "unrelated_pull_failure_is_untouched",
			pullError:      commandFailureWithStandardError(unrelatedFailureStandardErrorConstant),
			expectDiverged: false,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			manager := &fakeRepositoryManager{
				defaultBranchName: defaultBranchNameConstant,
				pullErrorsByPath:  map[string]error{repositoryPathConstant: testCase.pullError},
			}
			fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
			synchronizerInstance := newSynchronizerUnderTest(subtestInstance, manager, fileSystem)

			synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
				RemoteURL: repositoryRemoteConstant,
				LocalPath: repositoryPathConstant,
			})
			require.Error(subtestInstance, synchronizationError)

			var divergedError reposync.DivergedHistoryError
			if testCase.expectDiverged {
				require.ErrorAs(subtestInstance, synchronizationError, &divergedError)
				require.Equal(subtestInstance, defaultBranchNameConstant, divergedError.BranchName)
				require.Equal(subtestInstance, repositoryPathConstant, divergedError.RepositoryPath)
				return
			}
			require.NotErrorAs(subtestInstance, synchronizationError, &divergedError)
		})
	}
}

func TestSynchronizeClassifiesUnknownRevision(testInstance *testing.T) {
	manager := &fakeRepositoryManager{
		defaultBranchName: defaultBranchNameConstant,
		checkoutErrors: map[string]error{
			repositoryPathConstant + " v9.9.9": commandFailureWithStandardError(unknownRevisionStandardErrorConstant),
		},
	}
	fileSystem := &fakeFileSystem{existingPaths: map[string]bool{repositoryPathConstant: true}}
	synchronizerInstance := newSynchronizerUnderTest(testInstance, manager, fileSystem)

	synchronizationError := synchronizerInstance.Synchronize(context.Background(), reposync.RepositoryTarget{
		RemoteURL: repositoryRemoteConstant,
		LocalPath: repositoryPathConstant,
		Revision:  "v9.9.9",
	})

	var unknownRevisionError reposync.UnknownRevisionError
	require.ErrorAs(testInstance, synchronizationError, &unknownRevisionError)
	require.Equal(testInstance, "v9.9.9", unknownRevisionError.Revision)

	require.Error(testInstance, unknownRevisionError.Unwrap())
}
