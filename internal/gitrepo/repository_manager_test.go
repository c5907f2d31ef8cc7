package gitrepo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queensberry-research/reposync/internal/execshell"
	"github.com/queensberry-research/reposync/internal/gitrepo"
)

const (
	testRepositoryPathConstant         = "/tmp/checkout"
	testRemoteURLConstant              = "https://example.com/org/repo.git"
	testDefaultBranchOutputConstant    = "refs/remotes/origin/main\n"
	testExpectedDefaultBranchConstant  = "main"
	testRevisionConstant               = "v1.2.0"
	testHeadCommitConstant             = "0123456789abcdef0123456789abcdef01234567"
	testCloneCaseNameConstant          = "clone_recursive"
	testDefaultBranchCaseNameConstant  = "default_branch"
	testForceCheckoutCaseNameConstant  = "force_checkout"
	testPullCaseNameConstant           = "pull_fast_forward_only"
	testSubmoduleUpdateCaseNameConst   = "submodule_update_recursive"
	testCheckoutRevisionCaseNameConst  = "checkout_revision"
	testResolveHeadCaseNameConstant    = "resolve_head_commit"
	testCheckGitAvailableCaseNameConst = "check_git_available"
)

type scriptedGitExecutor struct {
	standardOutput   string
	executionError   error
	recordedCommands []execshell.CommandDetails
}

func (executor *scriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, details)
	if executor.executionError != nil {
		return execshell.ExecutionResult{}, executor.executionError
	}
	return execshell.ExecutionResult{StandardOutput: executor.standardOutput}, nil
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	repositoryManager, creationError := gitrepo.NewRepositoryManager(nil)
	require.Error(testInstance, creationError)
	require.Nil(testInstance, repositoryManager)
}

func TestRepositoryManagerIssuesExpectedGitCommands(testInstance *testing.T) {
	testCases := []struct {
		name                     string
		standardOutput           string
		invoke                   func(manager *gitrepo.RepositoryManager, executionContext context.Context) error
		expectedArguments        []string
		expectedWorkingDirectory string
	}{
		{
			name: testCheckGitAvailableCaseNameConst,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.CheckGitAvailable(executionContext)
			},
			expectedArguments: []string{"--version"},
		},
		{
			name: testCloneCaseNameConstant,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.CloneRecursive(executionContext, testRemoteURLConstant, testRepositoryPathConstant)
			},
			expectedArguments: []string{"clone", "--recurse-submodules", testRemoteURLConstant, testRepositoryPathConstant},
		},
		{
			name:           testDefaultBranchCaseNameConstant,
			standardOutput: testDefaultBranchOutputConstant,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				defaultBranch, resolveError := manager.DefaultBranch(executionContext, testRepositoryPathConstant)
				if resolveError != nil {
					return resolveError
				}
				require.Equal(testInstance, testExpectedDefaultBranchConstant, defaultBranch)
				return nil
			},
			expectedArguments:        []string{"symbolic-ref", "refs/remotes/origin/HEAD"},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
		{
			name: testForceCheckoutCaseNameConstant,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.ForceCheckout(executionContext, testRepositoryPathConstant, testExpectedDefaultBranchConstant)
			},
			expectedArguments:        []string{"checkout", "--force", testExpectedDefaultBranchConstant},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
		{
			name: testPullCaseNameConstant,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.PullFastForwardOnly(executionContext, testRepositoryPathConstant)
			},
			expectedArguments:        []string{"pull", "--ff-only", "--force", "--prune", "--tags"},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
		{
			name: testSubmoduleUpdateCaseNameConst,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.UpdateSubmodulesRecursive(executionContext, testRepositoryPathConstant)
			},
			expectedArguments:        []string{"submodule", "update", "--init", "--recursive"},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
		{
			name: testCheckoutRevisionCaseNameConst,
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				return manager.CheckoutRevision(executionContext, testRepositoryPathConstant, testRevisionConstant)
			},
			expectedArguments:        []string{"checkout", testRevisionConstant},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
		{
			name:           testResolveHeadCaseNameConstant,
			standardOutput: testHeadCommitConstant + "\n",
			invoke: func(manager *gitrepo.RepositoryManager, executionContext context.Context) error {
				headCommit, resolveError := manager.ResolveHeadCommit(executionContext, testRepositoryPathConstant)
				if resolveError != nil {
					return resolveError
				}
				require.Equal(testInstance, testHeadCommitConstant, headCommit)
				return nil
			},
			expectedArguments:        []string{"rev-parse", "HEAD"},
			expectedWorkingDirectory: testRepositoryPathConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			scriptedExecutor := &scriptedGitExecutor{standardOutput: testCase.standardOutput}
			repositoryManager, creationError := gitrepo.NewRepositoryManager(scriptedExecutor)
			require.NoError(testInstance, creationError)

			invocationError := testCase.invoke(repositoryManager, context.Background())
			require.NoError(testInstance, invocationError)

			require.Len(testInstance, scriptedExecutor.recordedCommands, 1)
			recordedCommand := scriptedExecutor.recordedCommands[0]
			require.Equal(testInstance, testCase.expectedArguments, recordedCommand.Arguments)
			require.Equal(testInstance, testCase.expectedWorkingDirectory, recordedCommand.WorkingDirectory)
		})
	}
}

func TestParseSubmoduleStatus(testInstance *testing.T) {
	statusOutput := strings.Join([]string{
		" 0123456789abcdef0123456789abcdef01234567 vendor/alpha (v3.0.0)",
		"+fedcba9876543210fedcba9876543210fedcba98 vendor/beta (heads/master)",
		"-00112233445566778899aabbccddeeff00112233 tools/gamma",
		"",
	}, "\n")

	statuses := gitrepo.ParseSubmoduleStatus(statusOutput)

	require.Len(testInstance, statuses, 3)
	require.Equal(testInstance, "vendor/alpha", statuses[0].Path)
	require.Equal(testInstance, "0123456789abcdef0123456789abcdef01234567", statuses[0].Commit)
	require.Equal(testInstance, gitrepo.SubmoduleStateInSync, statuses[0].State)
	require.Equal(testInstance, "vendor/beta", statuses[1].Path)
	require.Equal(testInstance, gitrepo.SubmoduleStateOutOfSync, statuses[1].State)
	require.Equal(testInstance, "tools/gamma", statuses[2].Path)
	require.Equal(testInstance, "00112233445566778899aabbccddeeff00112233", statuses[2].Commit)
	require.Equal(testInstance, gitrepo.SubmoduleStateUninitialized, statuses[2].State)
}

func TestParseRemoteURLSupportedProtocols(testInstance *testing.T) {
	testCases := []struct {
		name             string
		remote           string
		expectedProtocol gitrepo.RemoteProtocol
		expectedOwner    string
		expectedRepo     string
	}{
		{name: "https", remote: "https://github.com/queensberry-research/public.git", expectedProtocol: gitrepo.RemoteProtocolHTTPS, expectedOwner: "queensberry-research", expectedRepo: "public"},
		{name: "scp_like", remote: "git@github.com:queensberry-research/infra.git", expectedProtocol: gitrepo.RemoteProtocolSSH, expectedOwner: "queensberry-research", expectedRepo: "infra"},
		{name: "ssh_scheme", remote: "ssh://git@github.com/queensberry-research/infra.git", expectedProtocol: gitrepo.RemoteProtocolSSH, expectedOwner: "queensberry-research", expectedRepo: "infra"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			remoteURL, parseError := gitrepo.ParseRemoteURL(testCase.remote)
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedProtocol, remoteURL.Protocol)
			require.Equal(testInstance, testCase.expectedOwner, remoteURL.Owner)
			require.Equal(testInstance, testCase.expectedRepo, remoteURL.Repository)
		})
	}
}

func TestFormatRemoteURLRoundTripsSSHAlias(testInstance *testing.T) {
	formatted, formatError := gitrepo.FormatRemoteURL(gitrepo.RemoteURL{
		Protocol:   gitrepo.RemoteProtocolSSH,
		Host:       "deploy-alias",
		Owner:      "queensberry-research",
		Repository: "infra",
	})
	require.NoError(testInstance, formatError)
	require.Equal(testInstance, "git@deploy-alias:queensberry-research/infra.git", formatted)
}
