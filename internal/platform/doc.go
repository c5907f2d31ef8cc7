// Package platform prepares the host for repository synchronization by
// ensuring required tooling such as the git client is present.
package platform
