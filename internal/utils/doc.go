// Package utils houses the ambient helpers shared by the CLI commands:
// Viper-backed configuration loading, zap logger construction, command
// context plumbing, and output flushing.
package utils
