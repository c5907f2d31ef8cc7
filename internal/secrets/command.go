package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	encryptCommandUseConstant             = "encrypt PATHS..."
	encryptCommandShortConstant           = "Encrypt secret files against the recipients list"
	encryptCommandLongConstant            = "encrypt writes an age-encrypted .enc sibling for each file, using the configured recipients list to select who can decrypt."
	decryptCommandUseConstant             = "decrypt PATHS..."
	decryptCommandShortConstant           = "Decrypt .enc secret files with the local SSH identity"
	decryptCommandLongConstant            = "decrypt restores the plaintext sibling of each age-encrypted .enc file using the ed25519 key in ~/.ssh."
	encryptExecutionErrorTemplateConstant = "encryption failed: %w"
	decryptExecutionErrorTemplateConstant = "decryption failed: %w"
	missingPathArgumentsMessageConstant   = "at least one file path argument is required"
	flagRecipientsNameConstant            = "recipients"
	flagRecipientsDescriptionConstant     = "URL or local file listing the age recipients"
	defaultRecipientsSourceConstant       = "https://raw.githubusercontent.com/queensberry-research/public/refs/heads/master/src/ssh-keys.txt"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current secrets configuration.
type ConfigurationProvider func() Configuration

// Configuration captures configuration values for the secrets commands.
type Configuration struct {
	Recipients string `mapstructure:"recipients"`
}

// DefaultConfiguration provides baseline configuration values for the secrets commands.
func DefaultConfiguration() Configuration {
	return Configuration{Recipients: defaultRecipientsSourceConstant}
}

// DefaultConfigurationValues exposes secrets defaults keyed for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		rootKey + "." + flagRecipientsNameConstant: defaults.Recipients,
	}
}

// FileCipher runs the encryption workflows.
type FileCipher interface {
	Encrypt(executionContext context.Context, filePaths []string, recipientsSource string) error
	Decrypt(executionContext context.Context, filePaths []string) error
}

// CommandBuilder assembles the Cobra commands for secret file encryption.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Cipher                FileCipher
}

// BuildEncrypt constructs the encrypt command.
func (builder *CommandBuilder) BuildEncrypt() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   encryptCommandUseConstant,
		Short: encryptCommandShortConstant,
		Long:  encryptCommandLongConstant,
		RunE:  builder.runEncrypt,
	}

	command.Flags().String(flagRecipientsNameConstant, "", flagRecipientsDescriptionConstant)

	return command, nil
}

// BuildDecrypt constructs the decrypt command.
func (builder *CommandBuilder) BuildDecrypt() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   decryptCommandUseConstant,
		Short: decryptCommandShortConstant,
		Long:  decryptCommandLongConstant,
		RunE:  builder.runDecrypt,
	}, nil
}

func (builder *CommandBuilder) runEncrypt(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return errors.New(missingPathArgumentsMessageConstant)
	}

	recipientsFlagValue, _ := command.Flags().GetString(flagRecipientsNameConstant)
	recipientsSource := strings.TrimSpace(recipientsFlagValue)
	if len(recipientsSource) == 0 {
		recipientsSource = strings.TrimSpace(builder.resolveConfiguration().Recipients)
	}

	cipher, cipherError := builder.resolveCipher()
	if cipherError != nil {
		return cipherError
	}

	if encryptionError := cipher.Encrypt(command.Context(), arguments, recipientsSource); encryptionError != nil {
		return fmt.Errorf(encryptExecutionErrorTemplateConstant, encryptionError)
	}

	return nil
}

func (builder *CommandBuilder) runDecrypt(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return errors.New(missingPathArgumentsMessageConstant)
	}

	cipher, cipherError := builder.resolveCipher()
	if cipherError != nil {
		return cipherError
	}

	if decryptionError := cipher.Decrypt(command.Context(), arguments); decryptionError != nil {
		return fmt.Errorf(decryptExecutionErrorTemplateConstant, decryptionError)
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

func (builder *CommandBuilder) resolveCipher() (FileCipher, error) {
	if builder.Cipher != nil {
		return builder.Cipher, nil
	}

	logger := builder.resolveLogger()
	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner)
	if executorError != nil {
		return nil, executorError
	}

	return NewService(Dependencies{
		Logger:   logger,
		Executor: shellExecutor,
	})
}
