// Package steps runs independent provisioning steps with isolate-and-continue
// semantics: a failing step is logged and recorded in the run report while the
// remaining steps still execute.
package steps
