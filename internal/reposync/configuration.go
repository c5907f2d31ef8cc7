package reposync

import "strings"

// CommandConfiguration captures configuration values for the sync command.
type CommandConfiguration struct {
	Remote   string `mapstructure:"remote"`
	Path     string `mapstructure:"path"`
	Revision string `mapstructure:"revision"`
	Manifest string `mapstructure:"manifest"`
}

// DefaultCommandConfiguration provides baseline configuration values for synchronization.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Remote:   "",
		Path:     "",
		Revision: "",
		Manifest: "",
	}
}

// DefaultConfigurationValues exposes sync defaults keyed for the configuration loader.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + ".remote":   defaults.Remote,
		rootKey + ".path":     defaults.Path,
		rootKey + ".revision": defaults.Revision,
		rootKey + ".manifest": defaults.Manifest,
	}
}

// sanitize trims configuration values without applying implicit defaults.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.Remote = strings.TrimSpace(configuration.Remote)
	sanitized.Path = strings.TrimSpace(configuration.Path)
	sanitized.Revision = strings.TrimSpace(configuration.Revision)
	sanitized.Manifest = strings.TrimSpace(configuration.Manifest)

	return sanitized
}
