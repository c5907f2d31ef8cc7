// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging and bounded timeouts via ShellExecutor,
// exposes OSCommandRunner for default process execution, and defines the
// typed command abstractions used throughout reposync to run git, apt-get,
// and ssh-keygen in a testable manner.
package execshell
