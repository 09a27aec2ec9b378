package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknownCommandError(t *testing.T) {
	t.Parallel()

	valid := []string{"serve", "arm", "disarm", "status", "list", "show", "find"}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "typo", input: "statsu", want: `unknown command: statsu (did you mean "status"?)`},
		{name: "transposed", input: "disram", want: `unknown command: disram (did you mean "disarm"?)`},
		{name: "missing_letter", input: "serv", want: `unknown command: serv (did you mean "serve"?)`},
		{name: "too_far", input: "intercept", want: "unknown command: intercept"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualError(t, UnknownCommandError(tc.input, valid), tc.want)
		})
	}
}

func TestUnknownSideError(t *testing.T) {
	t.Parallel()

	assert.EqualError(t, UnknownSideError("respones"), `unknown side: respones (did you mean "response"?)`)
	assert.EqualError(t, UnknownSideError("body"), "unknown side: body (expected request or response)")
}
