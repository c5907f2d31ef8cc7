package deploykey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
	"github.com/queensberry-research/reposync/internal/gitrepo"
)

const (
	executorRequiredMessageConstant       = "deploy key service requires a command executor"
	keyNameRequiredMessageConstant        = "deploy key name must be provided"
	repositoryNamePatternConstant         = `^[\w\-]+/[\w\-]+$`
	repositoryNameFormatMessageConstant   = "repository name must be of the form org/repo"
	sshDirectoryNameConstant              = ".ssh"
	sshConfigFileNameConstant             = "config"
	privateKeyNameTemplateConstant        = "deploy-key-%s"
	publicKeySuffixConstant               = ".pub"
	defaultHostNameConstant               = "github.com"
	keyGenerationMessageConstant          = "generating deploy key"
	cloningWithDeployKeyMessageConstant   = "cloning repository with deploy key"
	keyCommentTemplateConstant            = "%s@%s"
	unknownUserNameConstant               = "unknown"
	sshKeygenFileFlagConstant             = "-f"
	sshKeygenPassphraseFlagConstant       = "-N"
	sshKeygenTypeFlagConstant             = "-t"
	sshKeygenCommentFlagConstant          = "-C"
	sshKeygenKeyTypeConstant              = "ed25519"
	gitCloneSubcommandConstant            = "clone"
	gitRecurseSubmodulesFlagConstant      = "--recurse-submodules"
	gitSSHCommandVariableNameConstant     = "GIT_SSH_COMMAND"
	gitSSHCommandTemplateConstant         = "ssh -i %s -o IdentitiesOnly=yes"
	sshConfigHostBlockTemplateConstant    = "\n\nHost %s\n    HostName %s\n    User git\n    IdentityFile %s\n    IdentitiesOnly yes\n"
	publicKeyInstructionsTemplateConstant = "Your public key is:\n\t%s\nAdd it at:\n\thttps://%s/%s/settings/keys\n"
	continuePromptConstant                = "Continue? [y]/n "
	sshConfigFileModeConstant             = 0o600
	logFieldKeyNameConstant               = "key_name"
	logFieldRepositoryConstant            = "repository"
	logFieldHostConstant                  = "host"
)

var repositoryNamePattern = regexp.MustCompile(repositoryNamePatternConstant)

// Options configures one deploy key provisioning run.
type Options struct {
	KeyName        string
	RepositoryName string
	HostName       string
}

// Validate rejects empty key names and malformed repository names, defaulting
// the host when unset.
func (options *Options) Validate() error {
	options.KeyName = strings.TrimSpace(options.KeyName)
	if len(options.KeyName) == 0 {
		return errors.New(keyNameRequiredMessageConstant)
	}

	options.RepositoryName = strings.TrimSpace(options.RepositoryName)
	if !repositoryNamePattern.MatchString(options.RepositoryName) {
		return errors.New(repositoryNameFormatMessageConstant)
	}

	options.HostName = strings.TrimSpace(options.HostName)
	if len(options.HostName) == 0 {
		options.HostName = defaultHostNameConstant
	}

	return nil
}

// CommandExecutor exposes the shell execution the service depends on.
type CommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteSSHKeygen(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ConfirmationPrompter collects user confirmations before the clone proceeds.
type ConfirmationPrompter interface {
	Confirm(prompt string) (bool, error)
}

// HomeDirectoryProvider resolves the current user's home directory.
type HomeDirectoryProvider func() (string, error)

// Dependencies configures collaborators for the deploy key service.
type Dependencies struct {
	Logger        *zap.Logger
	Executor      CommandExecutor
	Prompter      ConfirmationPrompter
	Output        io.Writer
	HomeDirectory HomeDirectoryProvider
}

// Service provisions a repository deploy key: it generates an ed25519 key
// pair, registers an SSH host alias for it, and clones the repository
// through that key once the user confirms the public half is installed.
type Service struct {
	logger        *zap.Logger
	executor      CommandExecutor
	prompter      ConfirmationPrompter
	output        io.Writer
	homeDirectory HomeDirectoryProvider
}

// NewService constructs a Service, defaulting the logger, output, prompter,
// and home directory lookup.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Executor == nil {
		return nil, errors.New(executorRequiredMessageConstant)
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	output := dependencies.Output
	if output == nil {
		output = os.Stdout
	}

	prompter := dependencies.Prompter
	if prompter == nil {
		prompter = NewIOConfirmationPrompter(os.Stdin, output)
	}

	homeDirectory := dependencies.HomeDirectory
	if homeDirectory == nil {
		homeDirectory = os.UserHomeDir
	}

	return &Service{
		logger:        logger,
		executor:      dependencies.Executor,
		prompter:      prompter,
		output:        output,
		homeDirectory: homeDirectory,
	}, nil
}

// Provision runs the full deploy key workflow for the provided options.
func (service *Service) Provision(executionContext context.Context, options Options) error {
	if validationError := options.Validate(); validationError != nil {
		return validationError
	}

	homePath, homeError := service.homeDirectory()
	if homeError != nil {
		return homeError
	}

	privateKeyPath := filepath.Join(homePath, sshDirectoryNameConstant, fmt.Sprintf(privateKeyNameTemplateConstant, options.KeyName))

	service.logger.Info(
		keyGenerationMessageConstant,
		zap.String(logFieldKeyNameConstant, options.KeyName),
		zap.String(logFieldRepositoryConstant, options.RepositoryName),
		zap.String(logFieldHostConstant, options.HostName),
	)

	if generationError := service.generateKeyPair(executionContext, privateKeyPath); generationError != nil {
		return generationError
	}

	if instructionsError := service.printPublicKeyInstructions(privateKeyPath, options); instructionsError != nil {
		return instructionsError
	}

	if configError := service.appendHostAlias(homePath, privateKeyPath, options); configError != nil {
		return configError
	}

	if confirmationError := service.waitForConfirmation(); confirmationError != nil {
		return confirmationError
	}

	return service.cloneRepository(executionContext, privateKeyPath, options)
}

func (service *Service) generateKeyPair(executionContext context.Context, privateKeyPath string) error {
	_, executionError := service.executor.ExecuteSSHKeygen(executionContext, execshell.CommandDetails{
		Arguments: []string{
			sshKeygenFileFlagConstant, privateKeyPath,
			sshKeygenPassphraseFlagConstant, "",
			sshKeygenTypeFlagConstant, sshKeygenKeyTypeConstant,
			sshKeygenCommentFlagConstant, keyComment(),
		},
	})
	return executionError
}

func (service *Service) printPublicKeyInstructions(privateKeyPath string, options Options) error {
	publicKeyBytes, readError := os.ReadFile(privateKeyPath + publicKeySuffixConstant)
	if readError != nil {
		return readError
	}

	_, writeError := fmt.Fprintf(
		service.output,
		publicKeyInstructionsTemplateConstant,
		strings.TrimSpace(string(publicKeyBytes)),
		options.HostName,
		options.RepositoryName,
	)
	return writeError
}

// appendHostAlias registers an SSH config Host block named after the key so
// later fetches resolve the deploy key without environment overrides.
func (service *Service) appendHostAlias(homePath string, privateKeyPath string, options Options) error {
	configPath := filepath.Join(homePath, sshDirectoryNameConstant, sshConfigFileNameConstant)
	configFile, openError := os.OpenFile(configPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, sshConfigFileModeConstant)
	if openError != nil {
		return openError
	}
	defer func() {
		_ = configFile.Close()
	}()

	hostBlock := fmt.Sprintf(sshConfigHostBlockTemplateConstant, options.KeyName, options.HostName, privateKeyPath)
	_, writeError := configFile.WriteString(hostBlock)
	return writeError
}

func (service *Service) waitForConfirmation() error {
	for {
		confirmed, promptError := service.prompter.Confirm(continuePromptConstant)
		if promptError != nil {
			return promptError
		}
		if confirmed {
			return nil
		}
	}
}

// cloneRepository clones through the key-named host alias. The alias may not
// be picked up by every SSH configuration yet, so the identity file is also
// forced through GIT_SSH_COMMAND for this first clone.
func (service *Service) cloneRepository(executionContext context.Context, privateKeyPath string, options Options) error {
	repositoryOwner, repositoryName := splitRepositoryName(options.RepositoryName)
	cloneURL, formatError := gitrepo.FormatRemoteURL(gitrepo.RemoteURL{
		Protocol:   gitrepo.RemoteProtocolSSH,
		Host:       options.KeyName,
		Owner:      repositoryOwner,
		Repository: repositoryName,
	})
	if formatError != nil {
		return formatError
	}

	service.logger.Info(
		cloningWithDeployKeyMessageConstant,
		zap.String(logFieldKeyNameConstant, options.KeyName),
		zap.String(logFieldRepositoryConstant, options.RepositoryName),
	)

	_, cloneError := service.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, gitRecurseSubmodulesFlagConstant, cloneURL},
		EnvironmentVariables: map[string]string{
			gitSSHCommandVariableNameConstant: fmt.Sprintf(gitSSHCommandTemplateConstant, privateKeyPath),
		},
	})
	return cloneError
}

func splitRepositoryName(repositoryName string) (string, string) {
	separatorIndex := strings.Index(repositoryName, "/")
	return repositoryName[:separatorIndex], repositoryName[separatorIndex+1:]
}

func keyComment() string {
	userName := unknownUserNameConstant
	if currentUser, userError := user.Current(); userError == nil {
		userName = currentUser.Username
	}
	hostName, hostError := os.Hostname()
	if hostError != nil {
		hostName = unknownUserNameConstant
	}
	return fmt.Sprintf(keyCommentTemplateConstant, userName, hostName)
}
