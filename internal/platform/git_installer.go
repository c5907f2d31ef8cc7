package platform

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	probeRequiredMessageConstant            = "git installer requires a git probe"
	packageManagerRequiredMessageConstant   = "git installer requires a package manager executor"
	toolingUnavailableErrorTemplateConstant = "required tool %s is unavailable: %v"
	gitInstallStartedMessageConstant        = "git client not found; installing via package manager"
	gitAlreadyAvailableMessageConstant      = "git client available"
	aptGetUpdateSubcommandConstant          = "update"
	aptGetInstallSubcommandConstant         = "install"
	aptGetAssumeYesFlagConstant             = "-y"
	gitPackageNameConstant                  = "git"
	packageManagerToolNameConstant          = "apt-get"
)

// ToolingUnavailableError indicates a required external command is missing and
// could not be installed.
type ToolingUnavailableError struct {
	ToolName string
	Cause    error
}

// Error describes the unavailable tool.
func (unavailable ToolingUnavailableError) Error() string {
	return fmt.Sprintf(toolingUnavailableErrorTemplateConstant, unavailable.ToolName, unavailable.Cause)
}

// Unwrap exposes the underlying failure.
func (unavailable ToolingUnavailableError) Unwrap() error {
	return unavailable.Cause
}

// GitProbe reports whether a working git client is reachable.
type GitProbe interface {
	CheckGitAvailable(executionContext context.Context) error
}

// PackageManagerExecutor exposes the package manager invocation used for installs.
type PackageManagerExecutor interface {
	ExecuteAptGet(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// GitInstaller guarantees a usable git client, installing one through the
// platform package manager when necessary.
type GitInstaller struct {
	logger         *zap.Logger
	probe          GitProbe
	packageManager PackageManagerExecutor
}

// NewGitInstaller constructs a GitInstaller.
func NewGitInstaller(logger *zap.Logger, probe GitProbe, packageManager PackageManagerExecutor) (*GitInstaller, error) {
	if probe == nil {
		return nil, errors.New(probeRequiredMessageConstant)
	}
	if packageManager == nil {
		return nil, errors.New(packageManagerRequiredMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitInstaller{logger: logger, probe: probe, packageManager: packageManager}, nil
}

// EnsureGit probes for git and installs it when the probe fails. A failing
// package manager surfaces as ToolingUnavailableError.
func (installer *GitInstaller) EnsureGit(executionContext context.Context) error {
	if probeError := installer.probe.CheckGitAvailable(executionContext); probeError == nil {
		installer.logger.Debug(gitAlreadyAvailableMessageConstant)
		return nil
	}

	installer.logger.Info(gitInstallStartedMessageConstant)

	if _, updateError := installer.packageManager.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments: []string{aptGetUpdateSubcommandConstant},
	}); updateError != nil {
		return ToolingUnavailableError{ToolName: packageManagerToolNameConstant, Cause: updateError}
	}

	if _, installError := installer.packageManager.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments: []string{aptGetInstallSubcommandConstant, aptGetAssumeYesFlagConstant, gitPackageNameConstant},
	}); installError != nil {
		return ToolingUnavailableError{ToolName: gitPackageNameConstant, Cause: installError}
	}

	return nil
}
