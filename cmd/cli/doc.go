// Package cli assembles the reposync command-line application: root command,
// configuration loading, logger construction, and subcommand wiring.
package cli
