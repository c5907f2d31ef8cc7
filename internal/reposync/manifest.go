package reposync

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	pathutils "github.com/queensberry-research/reposync/internal/utils/path"
)

const (
	manifestPathRequiredMessageConstant   = "manifest path must be provided"
	manifestLoadErrorTemplateConstant     = "failed to load manifest: %w"
	manifestParseErrorTemplateConstant    = "failed to parse manifest: %w"
	manifestEmptyMessageConstant          = "manifest must define at least one repository"
	manifestEntryRemoteTemplateConstant   = "manifest repository %d is missing a remote url"
	manifestEntryPathTemplateConstant     = "manifest repository %d is missing a local path"
	manifestDuplicatePathTemplateConstant = "manifest defines the local path %s more than once"
)

// Manifest lists the repositories a run should synchronize.
type Manifest struct {
	Repositories []RepositoryDefinition `yaml:"repositories"`
}

// RepositoryDefinition is the YAML form of one repository target.
type RepositoryDefinition struct {
	Remote     string            `yaml:"remote"`
	Path       string            `yaml:"path"`
	Revision   string            `yaml:"revision"`
	Submodules map[string]string `yaml:"submodules"`
}

// LoadManifest reads the manifest from disk and performs basic validation.
// Local paths are identities: duplicates are rejected.
func LoadManifest(filePath string) (Manifest, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Manifest{}, errors.New(manifestPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(manifestLoadErrorTemplateConstant, readError)
	}

	var manifest Manifest
	if unmarshalError := yaml.Unmarshal(contentBytes, &manifest); unmarshalError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, unmarshalError)
	}

	if len(manifest.Repositories) == 0 {
		return Manifest{}, errors.New(manifestEmptyMessageConstant)
	}

	seenLocalPaths := map[string]struct{}{}
	for repositoryIndex, repositoryDefinition := range manifest.Repositories {
		if len(strings.TrimSpace(repositoryDefinition.Remote)) == 0 {
			return Manifest{}, fmt.Errorf(manifestEntryRemoteTemplateConstant, repositoryIndex)
		}
		trimmedLocalPath := strings.TrimSpace(repositoryDefinition.Path)
		if len(trimmedLocalPath) == 0 {
			return Manifest{}, fmt.Errorf(manifestEntryPathTemplateConstant, repositoryIndex)
		}
		if _, alreadySeen := seenLocalPaths[trimmedLocalPath]; alreadySeen {
			return Manifest{}, fmt.Errorf(manifestDuplicatePathTemplateConstant, trimmedLocalPath)
		}
		seenLocalPaths[trimmedLocalPath] = struct{}{}
	}

	return manifest, nil
}

// Target converts the definition into a RepositoryTarget, expanding home shortcuts.
func (definition RepositoryDefinition) Target(pathExpander *pathutils.HomeExpander) RepositoryTarget {
	localPath := strings.TrimSpace(definition.Path)
	if pathExpander != nil {
		localPath = pathExpander.Expand(localPath)
	}

	submoduleRevisions := make(map[string]string, len(definition.Submodules))
	for submoduleName, submoduleRevision := range definition.Submodules {
		submoduleRevisions[submoduleName] = strings.TrimSpace(submoduleRevision)
	}

	return RepositoryTarget{
		RemoteURL:          strings.TrimSpace(definition.Remote),
		LocalPath:          localPath,
		Revision:           strings.TrimSpace(definition.Revision),
		SubmoduleRevisions: submoduleRevisions,
	}
}
