package steps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	stepStartedMessageConstant    = "step starting"
	stepSucceededMessageConstant  = "step completed"
	stepFailedMessageConstant     = "step failed; continuing with remaining steps"
	logFieldStepNameConstant      = "step_name"
	logFieldErrorKindConstant     = "error_kind"
	errorTypeTemplateConstant     = "%T"
	pointerPrefixConstant         = "*"
	typeNameSeparatorConstant     = "."
	fallbackErrorKindConstant     = "error"
	opaqueErrorStringTypeConstant = "errorString"
	opaqueWrapErrorTypeConstant   = "wrapError"
	opaqueJoinErrorTypeConstant   = "joinError"
)

// Step is one independent unit of work in a run.
type Step struct {
	Name    string
	Execute func(executionContext context.Context) error
}

// Failure records one isolated step failure for the run report.
type Failure struct {
	StepName  string
	ErrorKind string
	Message   string
}

// Report summarizes a run: how many steps executed and which of them failed.
type Report struct {
	StepCount int
	Failures  []Failure
}

// HasFailures reports whether any step failed during the run.
func (report Report) HasFailures() bool {
	return len(report.Failures) > 0
}

// Runner executes steps sequentially, isolating each failure so one broken
// step never prevents the remaining steps from running. Failures are logged
// and recorded, never retried.
type Runner struct {
	logger *zap.Logger
}

// NewRunner constructs a Runner with the provided logger.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Run executes every step in order and returns the run report.
func (runner *Runner) Run(executionContext context.Context, runSteps []Step) Report {
	report := Report{StepCount: len(runSteps)}
	for _, runStep := range runSteps {
		if stepFailure := runner.runIsolated(executionContext, runStep); stepFailure != nil {
			report.Failures = append(report.Failures, *stepFailure)
		}
	}
	return report
}

func (runner *Runner) runIsolated(executionContext context.Context, runStep Step) *Failure {
	runner.logger.Info(stepStartedMessageConstant, zap.String(logFieldStepNameConstant, runStep.Name))

	if executionError := runStep.Execute(executionContext); executionError != nil {
		failure := Failure{
			StepName:  runStep.Name,
			ErrorKind: ErrorKind(executionError),
			Message:   executionError.Error(),
		}
		runner.logger.Error(
			stepFailedMessageConstant,
			zap.String(logFieldStepNameConstant, failure.StepName),
			zap.String(logFieldErrorKindConstant, failure.ErrorKind),
			zap.Error(executionError),
		)
		return &failure
	}

	runner.logger.Info(stepSucceededMessageConstant, zap.String(logFieldStepNameConstant, runStep.Name))
	return nil
}

// ErrorKind derives a short error classification from the error's concrete
// type name, with untyped stdlib errors collapsing to a generic kind.
func ErrorKind(stepError error) string {
	typeName := fmt.Sprintf(errorTypeTemplateConstant, stepError)
	typeName = strings.TrimPrefix(typeName, pointerPrefixConstant)
	if separatorIndex := strings.LastIndex(typeName, typeNameSeparatorConstant); separatorIndex >= 0 {
		typeName = typeName[separatorIndex+1:]
	}
	switch typeName {
	case opaqueErrorStringTypeConstant, opaqueWrapErrorTypeConstant, opaqueJoinErrorTypeConstant:
		return fallbackErrorKindConstant
	}
	return typeName
}
