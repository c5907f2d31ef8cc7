package deploykey_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queensberry-research/reposync/internal/deploykey"
)

func TestIOConfirmationPrompter(testInstance *testing.T) {
	testCases := []struct {
		name            string
		response        string
		expectConfirmed bool
	}{
		{name: "empty_response_confirms", response: "\n", expectConfirmed: true},
		{name: "y_confirms", response: "y\n", expectConfirmed: true},
		{name: "yes_confirms", response: "YES\n", expectConfirmed: true},
		{name: "n_declines", response: "n\n", expectConfirmed: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtestInstance *testing.T) {
			outputBuilder := &strings.Builder{}
			prompter := deploykey.NewIOConfirmationPrompter(strings.NewReader(testCase.response), outputBuilder)

			confirmed, promptError := prompter.Confirm("Continue? [y]/n ")
			require.NoError(subtestInstance, promptError)
			require.Equal(subtestInstance, testCase.expectConfirmed, confirmed)
			require.Equal(subtestInstance, "Continue? [y]/n ", outputBuilder.String())
		})
	}
}
