package erp

import (
	"errors"
	"strings"
)

// FailureKind groups remote login failures into user-facing buckets.
type FailureKind string

const (
	// FailureGeneric covers any signal we cannot classify. Presented as a
	// generic sign-in failure so remote internals never leak.
	FailureGeneric FailureKind = "generic"
	// FailureInvalidCredentials means the remote explicitly rejected the
	// username/password pair.
	FailureInvalidCredentials FailureKind = "invalid_credentials"
	// FailureUnavailable means the remote is in maintenance or outside its
	// access window and the user should retry later.
	FailureUnavailable FailureKind = "unavailable"
)

// ClassifierRule maps a case-insensitive substring of the remote failure
// signal to a failure kind. Rules are evaluated in order; the first match
// wins.
type ClassifierRule struct {
	Contains string      `json:"contains" mapstructure:"contains"`
	Kind     FailureKind `json:"kind"     mapstructure:"kind"`
}

// DefaultClassifierRules returns the rule set matching the remote system's
// known failure signals. Deployments can override it through configuration
// when the remote changes its wording.
func DefaultClassifierRules() []ClassifierRule {
	return []ClassifierRule{
		{Contains: "invalid_grant", Kind: FailureInvalidCredentials},
		{Contains: "invalid username or password", Kind: FailureInvalidCredentials},
		{Contains: "maintenance", Kind: FailureUnavailable},
		{Contains: "not available at this time", Kind: FailureUnavailable},
	}
}

// ParseFailureKind validates a configured kind string.
func ParseFailureKind(s string) (FailureKind, bool) {
	switch FailureKind(strings.ToLower(strings.TrimSpace(s))) {
	case FailureInvalidCredentials:
		return FailureInvalidCredentials, true
	case FailureUnavailable:
		return FailureUnavailable, true
	case FailureGeneric:
		return FailureGeneric, true
	}
	return "", false
}

// Classify resolves a remote login error to a failure kind. Transport
// errors and unmatched signals fall through to FailureGeneric.
func Classify(rules []ClassifierRule, err error) FailureKind {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return FailureGeneric
	}

	signal := strings.ToLower(authErr.Signal)
	for _, rule := range rules {
		if rule.Contains == "" {
			continue
		}
		if strings.Contains(signal, strings.ToLower(rule.Contains)) {
			return rule.Kind
		}
	}
	return FailureGeneric
}
