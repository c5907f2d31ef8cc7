package steps_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/queensberry-research/reposync/internal/reposync"
	"github.com/queensberry-research/reposync/internal/steps"
)

const (
	testFirstStepNameConstant      = "sync infra"
	testSecondStepNameConstant     = "sync public"
	testThirdStepNameConstant      = "sync tools"
	testFailureMessageConstant     = "pull exploded"
	testTypedErrorKindConstant     = "DivergedHistoryError"
	testUntypedErrorKindConstant   = "error"
	testRepositoryPathConstant     = "/srv/infra"
	testDefaultBranchNameConstant  = "master"
	testExpectedStepCountReference = 3
)

func TestRunnerContinuesPastFailures(testInstance *testing.T) {
	executionOrder := []string{}

	runSteps := []steps.Step{
		{
			Name: testFirstStepNameConstant,
			Execute: func(context.Context) error {
				executionOrder = append(executionOrder, testFirstStepNameConstant)
				return nil
			},
		},
		{
			Name: testSecondStepNameConstant,
			Execute: func(context.Context) error {
				executionOrder = append(executionOrder, testSecondStepNameConstant)
				return errors.New(testFailureMessageConstant)
			},
		},
		{
			Name: testThirdStepNameConstant,
			Execute: func(context.Context) error {
				executionOrder = append(executionOrder, testThirdStepNameConstant)
				return nil
			},
		},
	}

	observerCore, observedLogs := observer.New(zap.DebugLevel)
	report := steps.NewRunner(zap.New(observerCore)).Run(context.Background(), runSteps)

	require.Equal(testInstance, []string{testFirstStepNameConstant, testSecondStepNameConstant, testThirdStepNameConstant}, executionOrder)
	require.Equal(testInstance, testExpectedStepCountReference, report.StepCount)
	require.True(testInstance, report.HasFailures())
	require.Len(testInstance, report.Failures, 1)
	require.Equal(testInstance, testSecondStepNameConstant, report.Failures[0].StepName)
	require.Equal(testInstance, testUntypedErrorKindConstant, report.Failures[0].ErrorKind)
	require.Equal(testInstance, testFailureMessageConstant, report.Failures[0].Message)
	require.NotEmpty(testInstance, observedLogs.All())
}

func TestErrorKindUsesConcreteTypeNames(testInstance *testing.T) {
	testCases := []struct {
		name         string
		stepError    error
		expectedKind string
	}{
		{
			name:         "typed_domain_error",
			stepError:    reposync.DivergedHistoryError{RepositoryPath: testRepositoryPathConstant, BranchName: testDefaultBranchNameConstant},
			expectedKind: testTypedErrorKindConstant,
		},
		{
			name:         "untyped_error",
			stepError:    errors.New(testFailureMessageConstant),
			expectedKind: testUntypedErrorKindConstant,
		},
		{
			name:         "wrapped_error",
			stepError:    errors.Join(errors.New(testFailureMessageConstant)),
			expectedKind: testUntypedErrorKindConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedKind, steps.ErrorKind(testCase.stepError))
		})
	}
}
