package reposync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
	"github.com/queensberry-research/reposync/internal/gitrepo"
	"github.com/queensberry-research/reposync/internal/platform"
	"github.com/queensberry-research/reposync/internal/steps"
	"github.com/queensberry-research/reposync/internal/utils"
	pathutils "github.com/queensberry-research/reposync/internal/utils/path"
)

const (
	commandUseConstant                     = "sync"
	commandShortDescriptionConstant        = "Clone or update one or more repositories"
	commandLongDescriptionConstant         = "sync clones each configured repository when absent and force-updates it onto the remote default branch when present, then applies any requested revision pins."
	unexpectedArgumentsMessageConstant     = "sync does not accept positional arguments"
	missingTargetMessageConstant           = "either a manifest or a remote and path must be provided"
	failureSummaryTemplateConstant         = "%d of %d repositories failed to synchronize"
	submoduleAssignmentSeparatorConstant   = "="
	submoduleAssignmentPartCountConstant   = 2
	malformedSubmoduleFlagTemplateConstant = "submodule pin %q must use the name=revision form"
	stepNameTemplateConstant               = "sync %s"
	configurationSourceMessageConstant     = "targets resolved from configuration file"
	logFieldConfigFileConstant             = "config_file"
	flagRemoteNameConstant                 = "remote"
	flagRemoteDescriptionConstant          = "Remote URL of the repository to synchronize"
	flagPathNameConstant                   = "path"
	flagPathDescriptionConstant            = "Local path of the working copy"
	flagRevisionNameConstant               = "revision"
	flagRevisionDescriptionConstant        = "Branch, tag, or commit to check out after updating"
	flagSubmoduleNameConstant              = "submodule"
	flagSubmoduleDescriptionConstant       = "Submodule pin in name=revision form (repeatable)"
	flagManifestNameConstant               = "manifest"
	flagManifestDescriptionConstant        = "Path to a YAML manifest listing repositories to synchronize"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current sync configuration.
type ConfigurationProvider func() CommandConfiguration

// TargetSynchronizer applies one repository target.
type TargetSynchronizer interface {
	Synchronize(executionContext context.Context, target RepositoryTarget) error
}

// CommandBuilder assembles the Cobra command for repository synchronization.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Synchronizer          TargetSynchronizer
	PathExpander          *pathutils.HomeExpander
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagRemoteNameConstant, "", flagRemoteDescriptionConstant)
	command.Flags().String(flagPathNameConstant, "", flagPathDescriptionConstant)
	command.Flags().String(flagRevisionNameConstant, "", flagRevisionDescriptionConstant)
	command.Flags().StringArray(flagSubmoduleNameConstant, nil, flagSubmoduleDescriptionConstant)
	command.Flags().String(flagManifestNameConstant, "", flagManifestDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	targets, targetsError := builder.collectTargets(command)
	if targetsError != nil {
		return targetsError
	}

	logger := builder.resolveLogger()

	contextAccessor := utils.NewCommandContextAccessor()
	if configurationFilePath, configurationFilePathAvailable := contextAccessor.ConfigurationFilePath(command.Context()); configurationFilePathAvailable && len(configurationFilePath) > 0 {
		logger.Debug(
			configurationSourceMessageConstant,
			zap.String(logFieldConfigFileConstant, configurationFilePath),
		)
	}
	synchronizer, synchronizerError := builder.resolveSynchronizer(logger)
	if synchronizerError != nil {
		return synchronizerError
	}

	runSteps := make([]steps.Step, 0, len(targets))
	for _, repositoryTarget := range targets {
		currentTarget := repositoryTarget
		runSteps = append(runSteps, steps.Step{
			Name: synchronizationStepName(currentTarget),
			Execute: func(executionContext context.Context) error {
				return synchronizer.Synchronize(executionContext, currentTarget)
			},
		})
	}

	report := steps.NewRunner(logger).Run(command.Context(), runSteps)
	if report.HasFailures() {
		return fmt.Errorf(failureSummaryTemplateConstant, len(report.Failures), report.StepCount)
	}

	return nil
}

// collectTargets builds the target list from the manifest when one is
// configured and from the single-target flags otherwise. Flags take precedence
// over configuration file values.
func (builder *CommandBuilder) collectTargets(command *cobra.Command) ([]RepositoryTarget, error) {
	configuration := builder.resolveConfiguration()

	manifestFlagValue, _ := command.Flags().GetString(flagManifestNameConstant)
	manifestPath := selectStringValue(manifestFlagValue, configuration.Manifest)
	if len(manifestPath) > 0 {
		return builder.manifestTargets(manifestPath)
	}

	remoteFlagValue, _ := command.Flags().GetString(flagRemoteNameConstant)
	pathFlagValue, _ := command.Flags().GetString(flagPathNameConstant)
	revisionFlagValue, _ := command.Flags().GetString(flagRevisionNameConstant)
	submoduleFlagValues, _ := command.Flags().GetStringArray(flagSubmoduleNameConstant)

	remoteValue := selectStringValue(remoteFlagValue, configuration.Remote)
	pathValue := selectStringValue(pathFlagValue, configuration.Path)
	if len(remoteValue) == 0 || len(pathValue) == 0 {
		return nil, errors.New(missingTargetMessageConstant)
	}

	submoduleRevisions, submoduleParseError := parseSubmoduleAssignments(submoduleFlagValues)
	if submoduleParseError != nil {
		return nil, submoduleParseError
	}

	singleTarget := RepositoryTarget{
		RemoteURL:          remoteValue,
		LocalPath:          builder.expandPath(pathValue),
		Revision:           selectStringValue(revisionFlagValue, configuration.Revision),
		SubmoduleRevisions: submoduleRevisions,
	}
	return []RepositoryTarget{singleTarget}, nil
}

func (builder *CommandBuilder) manifestTargets(manifestPath string) ([]RepositoryTarget, error) {
	manifest, manifestError := LoadManifest(builder.expandPath(manifestPath))
	if manifestError != nil {
		return nil, manifestError
	}

	targets := make([]RepositoryTarget, 0, len(manifest.Repositories))
	for _, repositoryDefinition := range manifest.Repositories {
		targets = append(targets, repositoryDefinition.Target(builder.PathExpander))
	}
	return targets, nil
}

func (builder *CommandBuilder) expandPath(candidatePath string) string {
	if builder.PathExpander == nil {
		return candidatePath
	}
	return builder.PathExpander.Expand(candidatePath)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) resolveSynchronizer(logger *zap.Logger) (TargetSynchronizer, error) {
	if builder.Synchronizer != nil {
		return builder.Synchronizer, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner)
	if executorError != nil {
		return nil, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
	if managerError != nil {
		return nil, managerError
	}

	gitInstaller, installerError := platform.NewGitInstaller(logger, repositoryManager, shellExecutor)
	if installerError != nil {
		return nil, installerError
	}

	return NewSynchronizer(Dependencies{
		Logger:            logger,
		RepositoryManager: repositoryManager,
		Preflight:         gitInstaller,
	})
}

// synchronizationStepName labels a step with the owner/repository pair when
// the remote URL parses and with the local path otherwise.
func synchronizationStepName(target RepositoryTarget) string {
	parsedRemote, parseError := gitrepo.ParseRemoteURL(target.RemoteURL)
	if parseError != nil {
		return fmt.Sprintf(stepNameTemplateConstant, target.LocalPath)
	}
	return fmt.Sprintf(stepNameTemplateConstant, parsedRemote.Owner+"/"+parsedRemote.Repository)
}

func parseSubmoduleAssignments(assignments []string) (map[string]string, error) {
	if len(assignments) == 0 {
		return nil, nil
	}

	submoduleRevisions := make(map[string]string, len(assignments))
	for _, assignment := range assignments {
		assignmentParts := strings.SplitN(assignment, submoduleAssignmentSeparatorConstant, submoduleAssignmentPartCountConstant)
		if len(assignmentParts) != submoduleAssignmentPartCountConstant {
			return nil, fmt.Errorf(malformedSubmoduleFlagTemplateConstant, assignment)
		}
		submoduleName := strings.TrimSpace(assignmentParts[0])
		submoduleRevision := strings.TrimSpace(assignmentParts[1])
		if len(submoduleName) == 0 || len(submoduleRevision) == 0 {
			return nil, fmt.Errorf(malformedSubmoduleFlagTemplateConstant, assignment)
		}
		submoduleRevisions[submoduleName] = submoduleRevision
	}
	return submoduleRevisions, nil
}

func selectStringValue(flagValue string, configurationValue string) string {
	trimmedFlagValue := strings.TrimSpace(flagValue)
	if len(trimmedFlagValue) > 0 {
		return trimmedFlagValue
	}
	return strings.TrimSpace(configurationValue)
}
