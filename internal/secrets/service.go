package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/queensberry-research/reposync/internal/execshell"
)

const (
	executorRequiredMessageConstant       = "secrets service requires a command executor"
	pathsRequiredMessageConstant          = "at least one file path must be provided"
	recipientsRequiredMessageConstant     = "a recipients source must be provided"
	recipientsDownloadTemplateConstant    = "unable to download recipients from %s: %w"
	recipientsStatusTemplateConstant      = "recipients download from %s returned status %d"
	recipientsWriteTemplateConstant       = "unable to store recipients file: %w"
	identityMissingTemplateConstant       = "decryption identity %s does not exist"
	encryptedFileSuffixConstant           = ".enc"
	sshDirectoryNameConstant              = ".ssh"
	identityFileNameConstant              = "id_ed25519"
	recipientsFileNameConstant            = "recipients.txt"
	httpSchemeConstant                    = "http"
	httpsSchemeConstant                   = "https"
	ageEncryptFlagConstant                = "--encrypt"
	ageDecryptFlagConstant                = "--decrypt"
	ageRecipientsFileFlagTemplateConstant = "--recipients-file=%s"
	ageIdentityFlagTemplateConstant       = "--identity=%s"
	ageOutputFlagTemplateConstant         = "--output=%s"
	encryptingFileMessageConstant         = "encrypting file"
	decryptingFileMessageConstant         = "decrypting file"
	skippingFileMessageConstant           = "skipping file"
	skipReasonNotAFileConstant            = "not a regular file"
	skipReasonNotEncryptedConstant        = "missing the .enc suffix"
	logFieldFileConstant                  = "file"
	logFieldReasonConstant                = "reason"
	logFieldRecipientsConstant            = "recipients"
)

// AgeExecutor exposes the age invocation the service depends on.
type AgeExecutor interface {
	ExecuteAge(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// HTTPDoer issues the recipients download request.
type HTTPDoer interface {
	Do(request *http.Request) (*http.Response, error)
}

// HomeDirectoryProvider resolves the current user's home directory.
type HomeDirectoryProvider func() (string, error)

// Dependencies configures collaborators for the secrets service.
type Dependencies struct {
	Logger        *zap.Logger
	Executor      AgeExecutor
	HTTPClient    HTTPDoer
	HomeDirectory HomeDirectoryProvider
}

// Service encrypts and decrypts secret files with the age tool. Encryption
// targets a recipients list resolved from a URL or a local file; decryption
// uses the local ed25519 SSH identity.
type Service struct {
	logger        *zap.Logger
	executor      AgeExecutor
	httpClient    HTTPDoer
	homeDirectory HomeDirectoryProvider
}

// NewService constructs a Service, defaulting the logger, HTTP client, and
// home directory lookup.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Executor == nil {
		return nil, errors.New(executorRequiredMessageConstant)
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := dependencies.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	homeDirectory := dependencies.HomeDirectory
	if homeDirectory == nil {
		homeDirectory = os.UserHomeDir
	}

	return &Service{
		logger:        logger,
		executor:      dependencies.Executor,
		httpClient:    httpClient,
		homeDirectory: homeDirectory,
	}, nil
}

// Encrypt writes an age-encrypted sibling with the .enc suffix for every
// regular file in filePaths. Entries that are not regular files are logged
// and skipped; the first failed encryption aborts the run.
func (service *Service) Encrypt(executionContext context.Context, filePaths []string, recipientsSource string) error {
	if len(filePaths) == 0 {
		return errors.New(pathsRequiredMessageConstant)
	}

	trimmedSource := strings.TrimSpace(recipientsSource)
	if len(trimmedSource) == 0 {
		return errors.New(recipientsRequiredMessageConstant)
	}

	recipientsFilePath, cleanupRecipients, recipientsError := service.resolveRecipientsFile(executionContext, trimmedSource)
	if recipientsError != nil {
		return recipientsError
	}
	defer cleanupRecipients()

	for _, filePath := range filePaths {
		fileInformation, statError := os.Stat(filePath)
		if statError != nil || !fileInformation.Mode().IsRegular() {
			service.logger.Info(
				skippingFileMessageConstant,
				zap.String(logFieldFileConstant, filePath),
				zap.String(logFieldReasonConstant, skipReasonNotAFileConstant),
			)
			continue
		}

		service.logger.Info(
			encryptingFileMessageConstant,
			zap.String(logFieldFileConstant, filePath),
			zap.String(logFieldRecipientsConstant, trimmedSource),
		)

		encryptedFilePath := filePath + encryptedFileSuffixConstant
		_, executionError := service.executor.ExecuteAge(executionContext, execshell.CommandDetails{
			Arguments: []string{
				ageEncryptFlagConstant,
				fmt.Sprintf(ageRecipientsFileFlagTemplateConstant, recipientsFilePath),
				fmt.Sprintf(ageOutputFlagTemplateConstant, encryptedFilePath),
				filePath,
			},
		})
		if executionError != nil {
			return executionError
		}
	}

	return nil
}

// Decrypt restores the plaintext sibling of every .enc file in filePaths
// using the ~/.ssh/id_ed25519 identity. Entries without the suffix are
// logged and skipped; the first failed decryption aborts the run.
func (service *Service) Decrypt(executionContext context.Context, filePaths []string) error {
	if len(filePaths) == 0 {
		return errors.New(pathsRequiredMessageConstant)
	}

	homeDirectory, homeError := service.homeDirectory()
	if homeError != nil {
		return homeError
	}

	identityFilePath := filepath.Join(homeDirectory, sshDirectoryNameConstant, identityFileNameConstant)
	identityInformation, identityStatError := os.Stat(identityFilePath)
	if identityStatError != nil || !identityInformation.Mode().IsRegular() {
		return fmt.Errorf(identityMissingTemplateConstant, identityFilePath)
	}

	for _, filePath := range filePaths {
		fileInformation, statError := os.Stat(filePath)
		if statError != nil || !fileInformation.Mode().IsRegular() || !strings.HasSuffix(filePath, encryptedFileSuffixConstant) {
			service.logger.Info(
				skippingFileMessageConstant,
				zap.String(logFieldFileConstant, filePath),
				zap.String(logFieldReasonConstant, skipReasonNotEncryptedConstant),
			)
			continue
		}

		service.logger.Info(
			decryptingFileMessageConstant,
			zap.String(logFieldFileConstant, filePath),
		)

		decryptedFilePath := strings.TrimSuffix(filePath, encryptedFileSuffixConstant)
		_, executionError := service.executor.ExecuteAge(executionContext, execshell.CommandDetails{
			Arguments: []string{
				ageDecryptFlagConstant,
				fmt.Sprintf(ageIdentityFlagTemplateConstant, identityFilePath),
				fmt.Sprintf(ageOutputFlagTemplateConstant, decryptedFilePath),
				filePath,
			},
		})
		if executionError != nil {
			return executionError
		}
	}

	return nil
}

// resolveRecipientsFile returns a local file holding the recipients list,
// downloading it first when the source is an HTTP or HTTPS URL.
func (service *Service) resolveRecipientsFile(executionContext context.Context, recipientsSource string) (string, func(), error) {
	parsedSource, parseError := url.Parse(recipientsSource)
	if parseError != nil || (parsedSource.Scheme != httpSchemeConstant && parsedSource.Scheme != httpsSchemeConstant) {
		return recipientsSource, func() {}, nil
	}

	downloadRequest, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, recipientsSource, nil)
	if requestError != nil {
		return "", nil, fmt.Errorf(recipientsDownloadTemplateConstant, recipientsSource, requestError)
	}

	downloadResponse, downloadError := service.httpClient.Do(downloadRequest)
	if downloadError != nil {
		return "", nil, fmt.Errorf(recipientsDownloadTemplateConstant, recipientsSource, downloadError)
	}
	defer downloadResponse.Body.Close()

	if downloadResponse.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf(recipientsStatusTemplateConstant, recipientsSource, downloadResponse.StatusCode)
	}

	temporaryDirectory, temporaryError := os.MkdirTemp("", "")
	if temporaryError != nil {
		return "", nil, fmt.Errorf(recipientsWriteTemplateConstant, temporaryError)
	}
	cleanup := func() {
		os.RemoveAll(temporaryDirectory)
	}

	recipientsFilePath := filepath.Join(temporaryDirectory, recipientsFileNameConstant)
	recipientsFile, createError := os.Create(recipientsFilePath)
	if createError != nil {
		cleanup()
		return "", nil, fmt.Errorf(recipientsWriteTemplateConstant, createError)
	}

	if _, copyError := io.Copy(recipientsFile, downloadResponse.Body); copyError != nil {
		recipientsFile.Close()
		cleanup()
		return "", nil, fmt.Errorf(recipientsWriteTemplateConstant, copyError)
	}

	if closeError := recipientsFile.Close(); closeError != nil {
		cleanup()
		return "", nil, fmt.Errorf(recipientsWriteTemplateConstant, closeError)
	}

	return recipientsFilePath, cleanup, nil
}
