package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
)

const (
	genericStartTemplateConstant          = "Running %s"
	genericSuccessTemplateConstant        = "Completed %s"
	genericFailureTemplateConstant        = "%s failed with exit code %d%s"
	failureStandardErrorTemplateConstant  = ": %s"
	defaultWorkingDirectoryLabelConstant  = "current directory"
	argumentFlagPrefixConstant            = "-"
	standardOutputLineSeparatorConstant   = "\n"
	packageNameFallbackLabelConstant      = "requested package"
	revisionFallbackLabelConstant         = "requested revision"
	cloneDestinationFallbackLabelConstant = "requested destination"
)

const (
	gitCloneSubcommandNameConstant       = "clone"
	gitCheckoutSubcommandNameConstant    = "checkout"
	gitPullSubcommandNameConstant        = "pull"
	gitFetchSubcommandNameConstant       = "fetch"
	gitSubmoduleSubcommandNameConstant   = "submodule"
	gitSymbolicRefSubcommandNameConstant = "symbolic-ref"
	gitRevParseSubcommandNameConstant    = "rev-parse"
	aptGetUpdateSubcommandNameConstant   = "update"
	aptGetInstallSubcommandNameConstant  = "install"
)

const (
	gitCloneStartTemplateConstant         = "Cloning into %s"
	gitCloneSuccessTemplateConstant       = "Cloned into %s"
	gitCloneFailureTemplateConstant       = "Failed to clone into %s (exit code %d%s)"
	gitCheckoutStartTemplateConstant      = "Checking out %s in %s"
	gitCheckoutSuccessTemplateConstant    = "Checked out %s in %s"
	gitCheckoutFailureTemplateConstant    = "Failed to check out %s in %s (exit code %d%s)"
	gitPullStartTemplateConstant          = "Pulling updates in %s"
	gitPullSuccessTemplateConstant        = "Pulled updates in %s"
	gitPullFailureTemplateConstant        = "Failed to pull updates in %s (exit code %d%s)"
	gitSubmoduleStartTemplateConstant     = "Updating submodules in %s"
	gitSubmoduleSuccessTemplateConstant   = "Updated submodules in %s"
	gitSubmoduleFailureTemplateConstant   = "Failed to update submodules in %s (exit code %d%s)"
	gitSymbolicRefStartTemplateConstant   = "Resolving default branch in %s"
	gitSymbolicRefSuccessTemplateConstant = "Default branch in %s is %s"
	gitSymbolicRefFailureTemplateConstant = "Failed to resolve default branch in %s (exit code %d%s)"
	gitRevParseStartTemplateConstant      = "Resolving revision in %s"
	gitRevParseSuccessTemplateConstant    = "Revision in %s resolved to %s"
	gitRevParseFailureTemplateConstant    = "Failed to resolve revision in %s (exit code %d%s)"
	aptGetUpdateStartMessageConstant      = "Refreshing package index"
	aptGetUpdateSuccessMessageConstant    = "Refreshed package index"
	aptGetUpdateFailureTemplateConstant   = "Failed to refresh package index (exit code %d%s)"
	aptGetInstallStartTemplateConstant    = "Installing package %s"
	aptGetInstallSuccessTemplateConstant  = "Installed package %s"
	aptGetInstallFailureTemplateConstant  = "Failed to install package %s (exit code %d%s)"
	sshKeygenStartMessageConstant         = "Generating SSH key pair"
	sshKeygenSuccessMessageConstant       = "Generated SSH key pair"
	sshKeygenFailureTemplateConstant      = "Failed to generate SSH key pair (exit code %d%s)"
	ageEncryptStartTemplateConstant       = "Encrypting %s"
	ageEncryptSuccessTemplateConstant     = "Encrypted %s"
	ageEncryptFailureTemplateConstant     = "Failed to encrypt %s (exit code %d%s)"
	ageDecryptStartTemplateConstant       = "Decrypting %s"
	ageDecryptSuccessTemplateConstant     = "Decrypted %s"
	ageDecryptFailureTemplateConstant     = "Failed to decrypt %s (exit code %d%s)"
)

const (
	ageEncryptFlagConstant          = "--encrypt"
	ageDecryptFlagConstant          = "--decrypt"
	secretFileFallbackLabelConstant = "requested file"
)

// describeCommand produces a humanized message for a command at the given lifecycle stage.
func describeCommand(command ShellCommand, stage messageStage, result ExecutionResult) string {
	switch command.Name {
	case CommandGit:
		return describeGitCommand(command, stage, result)
	case CommandAptGet:
		return describeAptGetCommand(command, stage, result)
	case CommandSSHKeygen:
		return renderStagedMessage(stage, result,
			sshKeygenStartMessageConstant,
			sshKeygenSuccessMessageConstant,
			sshKeygenFailureTemplateConstant)
	case CommandAge:
		return describeAgeCommand(command, stage, result)
	default:
		return describeGenericCommand(command, stage, result)
	}
}

func describeAgeCommand(command ShellCommand, stage messageStage, result ExecutionResult) string {
	// age takes the input file as its only positional argument.
	fileLabel := firstSubcommand(command)
	if len(fileLabel) == 0 {
		fileLabel = secretFileFallbackLabelConstant
	}
	if hasArgument(command, ageEncryptFlagConstant) {
		return renderStagedMessage(stage, result,
			fmt.Sprintf(ageEncryptStartTemplateConstant, fileLabel),
			fmt.Sprintf(ageEncryptSuccessTemplateConstant, fileLabel),
			ageEncryptFailureTemplateConstant, fileLabel)
	}
	if hasArgument(command, ageDecryptFlagConstant) {
		return renderStagedMessage(stage, result,
			fmt.Sprintf(ageDecryptStartTemplateConstant, fileLabel),
			fmt.Sprintf(ageDecryptSuccessTemplateConstant, fileLabel),
			ageDecryptFailureTemplateConstant, fileLabel)
	}
	return describeGenericCommand(command, stage, result)
}

func hasArgument(command ShellCommand, wanted string) bool {
	for _, argument := range command.Details.Arguments {
		if argument == wanted {
			return true
		}
	}
	return false
}

func describeGitCommand(command ShellCommand, stage messageStage, result ExecutionResult) string {
	directoryLabel := workingDirectoryLabel(command)
	switch firstSubcommand(command) {
	case gitCloneSubcommandNameConstant:
		destinationLabel := lastNonFlagArgument(command)
		if len(destinationLabel) == 0 {
			destinationLabel = cloneDestinationFallbackLabelConstant
		}
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitCloneStartTemplateConstant, destinationLabel),
			fmt.Sprintf(gitCloneSuccessTemplateConstant, destinationLabel),
			gitCloneFailureTemplateConstant, destinationLabel)
	case gitCheckoutSubcommandNameConstant:
		revisionLabel := lastNonFlagArgument(command)
		if len(revisionLabel) == 0 {
			revisionLabel = revisionFallbackLabelConstant
		}
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitCheckoutStartTemplateConstant, revisionLabel, directoryLabel),
			fmt.Sprintf(gitCheckoutSuccessTemplateConstant, revisionLabel, directoryLabel),
			gitCheckoutFailureTemplateConstant, revisionLabel, directoryLabel)
	case gitPullSubcommandNameConstant, gitFetchSubcommandNameConstant:
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitPullStartTemplateConstant, directoryLabel),
			fmt.Sprintf(gitPullSuccessTemplateConstant, directoryLabel),
			gitPullFailureTemplateConstant, directoryLabel)
	case gitSubmoduleSubcommandNameConstant:
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitSubmoduleStartTemplateConstant, directoryLabel),
			fmt.Sprintf(gitSubmoduleSuccessTemplateConstant, directoryLabel),
			gitSubmoduleFailureTemplateConstant, directoryLabel)
	case gitSymbolicRefSubcommandNameConstant:
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitSymbolicRefStartTemplateConstant, directoryLabel),
			fmt.Sprintf(gitSymbolicRefSuccessTemplateConstant, directoryLabel, firstOutputLine(result)),
			gitSymbolicRefFailureTemplateConstant, directoryLabel)
	case gitRevParseSubcommandNameConstant:
		return renderStagedMessage(stage, result,
			fmt.Sprintf(gitRevParseStartTemplateConstant, directoryLabel),
			fmt.Sprintf(gitRevParseSuccessTemplateConstant, directoryLabel, firstOutputLine(result)),
			gitRevParseFailureTemplateConstant, directoryLabel)
	default:
		return describeGenericCommand(command, stage, result)
	}
}

func describeAptGetCommand(command ShellCommand, stage messageStage, result ExecutionResult) string {
	switch firstSubcommand(command) {
	case aptGetUpdateSubcommandNameConstant:
		return renderStagedMessage(stage, result,
			aptGetUpdateStartMessageConstant,
			aptGetUpdateSuccessMessageConstant,
			aptGetUpdateFailureTemplateConstant)
	case aptGetInstallSubcommandNameConstant:
		packageLabel := lastNonFlagArgument(command)
		if len(packageLabel) == 0 {
			packageLabel = packageNameFallbackLabelConstant
		}
		return renderStagedMessage(stage, result,
			fmt.Sprintf(aptGetInstallStartTemplateConstant, packageLabel),
			fmt.Sprintf(aptGetInstallSuccessTemplateConstant, packageLabel),
			aptGetInstallFailureTemplateConstant, packageLabel)
	default:
		return describeGenericCommand(command, stage, result)
	}
}

func describeGenericCommand(command ShellCommand, stage messageStage, result ExecutionResult) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, command.CommandLine())
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, command.CommandLine())
	default:
		return fmt.Sprintf(genericFailureTemplateConstant, command.CommandLine(), result.ExitCode, standardErrorSuffix(result))
	}
}

// renderStagedMessage selects the message for a stage; failure templates receive
// the supplied labels followed by the exit code and standard error suffix.
func renderStagedMessage(stage messageStage, result ExecutionResult, startMessage string, successMessage string, failureTemplate string, failureLabels ...any) string {
	switch stage {
	case messageStageStart:
		return startMessage
	case messageStageSuccess:
		return successMessage
	default:
		failureArguments := append(failureLabels, result.ExitCode, standardErrorSuffix(result))
		return fmt.Sprintf(failureTemplate, failureArguments...)
	}
}

func standardErrorSuffix(result ExecutionResult) string {
	trimmedStandardError := strings.TrimSpace(result.StandardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(failureStandardErrorTemplateConstant, trimmedStandardError)
}

func workingDirectoryLabel(command ShellCommand) string {
	if len(command.Details.WorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return command.Details.WorkingDirectory
}

func firstSubcommand(command ShellCommand) string {
	for _, argument := range command.Details.Arguments {
		if !strings.HasPrefix(argument, argumentFlagPrefixConstant) {
			return argument
		}
	}
	return ""
}

func lastNonFlagArgument(command ShellCommand) string {
	lastArgument := ""
	subcommandSeen := false
	for _, argument := range command.Details.Arguments {
		if strings.HasPrefix(argument, argumentFlagPrefixConstant) {
			continue
		}
		if !subcommandSeen {
			subcommandSeen = true
			continue
		}
		lastArgument = argument
	}
	return lastArgument
}

func firstOutputLine(result ExecutionResult) string {
	trimmedOutput := strings.TrimSpace(result.StandardOutput)
	if lineBreakIndex := strings.Index(trimmedOutput, standardOutputLineSeparatorConstant); lineBreakIndex >= 0 {
		return trimmedOutput[:lineBreakIndex]
	}
	return trimmedOutput
}
