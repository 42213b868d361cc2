package erp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisplayNameFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{"given name preferred", map[string]any{"given_name": "Jordan", "name": "Jordan White"}, "Jordan"},
		{"name first word", map[string]any{"name": "Jordan White"}, "Jordan"},
		{"unique name", map[string]any{"unique_name": "jwhite"}, "jwhite"},
		{"preferred username", map[string]any{"preferred_username": "j.white"}, "j.white"},
		{"email", map[string]any{"email": "jwhite@acme.test"}, "jwhite@acme.test"},
		{"sub", map[string]any{"sub": "user-42"}, "user-42"},
		{"blank claims skipped", map[string]any{"given_name": "  ", "email": "jwhite@acme.test"}, "jwhite@acme.test"},
		{"no usable claim", map[string]any{"aud": "erp"}, "login-name"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token := makeToken(t, tc.claims)
			require.Equal(t, tc.want, DisplayNameFromToken(token, "login-name"))
		})
	}
}

func TestDisplayNameFromUnparsableToken(t *testing.T) {
	require.Equal(t, "login-name", DisplayNameFromToken("garbage", "login-name"))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(3 * time.Hour).Unix()
	token := makeToken(t, map[string]any{"exp": exp})
	require.Equal(t, exp, TokenExpiry(token))
}

func TestTokenExpiryFallback(t *testing.T) {
	token := makeToken(t, map[string]any{"sub": "user-42"})
	got := TokenExpiry(token)

	lower := time.Now().Add(time.Hour).Add(-time.Minute).Unix()
	upper := time.Now().Add(time.Hour).Add(time.Minute).Unix()
	require.GreaterOrEqual(t, got, lower)
	require.LessOrEqual(t, got, upper)
}
