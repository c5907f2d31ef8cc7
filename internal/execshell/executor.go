package execshell

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor requires a logger"
	commandRunnerNotConfiguredMessageConstant = "shell executor requires a command runner"
	commandStartedMessageConstant             = "external command starting"
	commandSucceededMessageConstant           = "external command completed"
	commandFailedMessageConstant              = "external command failed"
	commandExecutionFailedMessageConstant     = "external command could not be executed"
	logFieldCommandConstant                   = "command"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldEnvironmentOverridesConstant      = "environment_overrides"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "standard_error"
	logFieldDetailConstant                    = "detail"
	defaultCommandTimeoutConstant             = 10 * time.Minute
)

// Configuration validation errors surfaced by NewShellExecutor.
var (
	ErrLoggerNotConfigured        = errors.New(loggerNotConfiguredMessageConstant)
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// CommandRunner executes a shell command and reports its result.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ExecutorConfiguration tunes optional shell executor behavior.
type ExecutorConfiguration struct {
	// CommandTimeout bounds each external command; zero selects the default bound.
	CommandTimeout time.Duration
	// Observer receives command lifecycle events in addition to structured logs.
	Observer CommandEventObserver
}

// ShellExecutor runs external commands with structured logging, humanized event
// messages, and a bounded per-command timeout.
type ShellExecutor struct {
	logger         *zap.Logger
	commandRunner  CommandRunner
	commandTimeout time.Duration
	eventObserver  CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor with default configuration.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner) (*ShellExecutor, error) {
	return NewShellExecutorWithConfiguration(logger, commandRunner, ExecutorConfiguration{})
}

// NewShellExecutorWithConfiguration constructs a ShellExecutor honoring the supplied configuration.
func NewShellExecutorWithConfiguration(logger *zap.Logger, commandRunner CommandRunner, configuration ExecutorConfiguration) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	commandTimeout := configuration.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeoutConstant
	}

	eventObserver := configuration.Observer
	if eventObserver == nil {
		eventObserver = noopCommandEventObserver{}
	}

	return &ShellExecutor{
		logger:         logger,
		commandRunner:  commandRunner,
		commandTimeout: commandTimeout,
		eventObserver:  eventObserver,
	}, nil
}

// ExecuteGit runs the git executable with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteAptGet runs the platform package manager with the provided details.
func (executor *ShellExecutor) ExecuteAptGet(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandAptGet, Details: details})
}

// ExecuteSSHKeygen runs ssh-keygen with the provided details.
func (executor *ShellExecutor) ExecuteSSHKeygen(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandSSHKeygen, Details: details})
}

// ExecuteAge runs the age encryption tool with the provided details.
func (executor *ShellExecutor) ExecuteAge(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.execute(executionContext, ShellCommand{Name: CommandAge, Details: details})
}

func (executor *ShellExecutor) execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	// The start log precedes execution so a hung command remains visible.
	executor.logger.Info(
		commandStartedMessageConstant,
		append(
			executor.commandLogFields(command),
			zap.String(logFieldDetailConstant, describeCommand(command, messageStageStart, ExecutionResult{})),
		)...,
	)
	executor.eventObserver.CommandStarted(command)

	boundedContext, cancelExecution := context.WithTimeout(executionContext, executor.commandTimeout)
	defer cancelExecution()

	executionResult, runError := executor.commandRunner.Run(boundedContext, command)
	if runError != nil {
		executor.eventObserver.CommandExecutionFailed(command, runError)
		executor.logger.Error(
			commandExecutionFailedMessageConstant,
			append(executor.commandLogFields(command), zap.Error(runError))...,
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.eventObserver.CommandCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		failure := CommandFailedError{Command: command, Result: executionResult}
		executor.logger.Error(
			commandFailedMessageConstant,
			append(
				executor.commandLogFields(command),
				zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
				zap.String(logFieldStandardErrorConstant, executionResult.StandardError),
				zap.String(logFieldDetailConstant, describeCommand(command, messageStageFailure, executionResult)),
			)...,
		)
		return ExecutionResult{}, failure
	}

	executor.logger.Info(
		commandSucceededMessageConstant,
		append(
			executor.commandLogFields(command),
			zap.String(logFieldDetailConstant, describeCommand(command, messageStageSuccess, executionResult)),
		)...,
	)

	return executionResult, nil
}

func (executor *ShellExecutor) commandLogFields(command ShellCommand) []zap.Field {
	logFields := []zap.Field{zap.String(logFieldCommandConstant, command.CommandLine())}
	if len(command.Details.WorkingDirectory) > 0 {
		logFields = append(logFields, zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory))
	}
	if len(command.Details.EnvironmentVariables) > 0 {
		environmentKeys := make([]string, 0, len(command.Details.EnvironmentVariables))
		for environmentKey := range command.Details.EnvironmentVariables {
			environmentKeys = append(environmentKeys, environmentKey)
		}
		sort.Strings(environmentKeys)
		logFields = append(logFields, zap.Strings(logFieldEnvironmentOverridesConstant, environmentKeys))
	}
	return logFields
}
