package erp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyKnownSignals(t *testing.T) {
	rules := DefaultClassifierRules()

	tests := []struct {
		name   string
		signal string
		want   FailureKind
	}{
		{"invalid grant", `{"error":"invalid_grant"}`, FailureInvalidCredentials},
		{"wrong password", "Invalid username or password.", FailureInvalidCredentials},
		{"maintenance", "The system is undergoing scheduled MAINTENANCE.", FailureUnavailable},
		{"access window", "This service is not available at this time.", FailureUnavailable},
		{"unknown signal", "internal error 0x81", FailureGeneric},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := &AuthError{StatusCode: 400, Signal: tc.signal}
			require.Equal(t, tc.want, Classify(rules, err))
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	rules := []ClassifierRule{
		{Contains: "error", Kind: FailureUnavailable},
		{Contains: "invalid_grant", Kind: FailureInvalidCredentials},
	}

	err := &AuthError{Signal: `{"error":"invalid_grant"}`}
	require.Equal(t, FailureUnavailable, Classify(rules, err))
}

func TestClassifyTransportError(t *testing.T) {
	require.Equal(t, FailureGeneric, Classify(DefaultClassifierRules(), errors.New("dial tcp: timeout")))
}

func TestParseFailureKind(t *testing.T) {
	kind, ok := ParseFailureKind(" Invalid_Credentials ")
	require.True(t, ok)
	require.Equal(t, FailureInvalidCredentials, kind)

	_, ok = ParseFailureKind("bogus")
	require.False(t, ok)
}
