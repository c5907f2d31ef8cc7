// Package reposync synchronizes local working copies with their remotes. It
// clones absent repositories, force-updates present ones onto the remote
// default branch, and pins superproject and submodule revisions on request.
package reposync
