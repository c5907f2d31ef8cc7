// Package gitrepo performs repository-level git operations through the shell executor:
// recursive clones, default-branch resolution, forced checkouts, fast-forward pulls,
// submodule updates and status parsing, and remote URL handling.
package gitrepo
