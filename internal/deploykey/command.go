package deploykey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	commandUseConstant                    = "deploy-key KEY_NAME ORG/REPO"
	commandShortDescriptionConstant       = "Generate a repository deploy key and clone through it"
	commandLongDescriptionConstant        = "deploy-key generates an ed25519 key pair, registers an SSH host alias for it, and clones the repository once the public key is installed."
	commandExecutionErrorTemplateConstant = "deploy key provisioning failed: %w"
	argumentCountMessageConstant          = "deploy-key requires exactly a key name and an org/repo argument"
	expectedArgumentCountConstant         = 2
	flagHostNameConstant                  = "host"
	flagHostDescriptionConstant           = "Host the alias points at"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current deploy key configuration.
type ConfigurationProvider func() Configuration

// Configuration captures configuration values for the deploy-key command.
type Configuration struct {
	Host string `mapstructure:"host"`
}

// DefaultConfiguration provides baseline configuration values for deploy key provisioning.
func DefaultConfiguration() Configuration {
	return Configuration{Host: ""}
}

// DefaultConfigurationValues exposes deploy key defaults keyed for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + flagHostNameConstant: defaults.Host,
	}
}

// CommandBuilder assembles the Cobra command for deploy key provisioning.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Service               Provisioner
	Output                io.Writer
	Prompter              ConfirmationPrompter
}

// Provisioner runs the deploy key workflow.
type Provisioner interface {
	Provision(executionContext context.Context, options Options) error
}

// Build constructs the deploy-key command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagHostNameConstant, "", flagHostDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) != expectedArgumentCountConstant {
		return errors.New(argumentCountMessageConstant)
	}

	hostFlagValue, _ := command.Flags().GetString(flagHostNameConstant)
	hostValue := strings.TrimSpace(hostFlagValue)
	if len(hostValue) == 0 {
		hostValue = strings.TrimSpace(builder.resolveConfiguration().Host)
	}

	provisionOptions := Options{
		KeyName:        arguments[0],
		RepositoryName: arguments[1],
		HostName:       hostValue,
	}

	logger := builder.resolveLogger()
	service, serviceError := builder.resolveService(logger, command)
	if serviceError != nil {
		return serviceError
	}

	if provisionError := service.Provision(command.Context(), provisionOptions); provisionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, provisionError)
	}

	return nil
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

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveService(logger *zap.Logger, command *cobra.Command) (Provisioner, error) {
	if builder.Service != nil {
		return builder.Service, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner)
	if executorError != nil {
		return nil, executorError
	}

	output := builder.Output
	if output == nil {
		output = command.OutOrStdout()
	}

	return NewService(Dependencies{
		Logger:   logger,
		Executor: shellExecutor,
		Prompter: builder.Prompter,
		Output:   output,
	})
}
