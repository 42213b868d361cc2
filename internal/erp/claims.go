package erp

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeClaims extracts the payload claims from a remote token without
// verifying its signature. The token is only ever presented back to the
// system that issued it, so verification happens there.
func DecodeClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return jwt.MapClaims{}
	}
	return claims
}

// TokenExpiry reads the exp claim as a unix timestamp. When the claim is
// missing or malformed it assumes one hour of validity so the credential
// still gets a bounded lifetime.
func TokenExpiry(token string) int64 {
	claims := DecodeClaims(token)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		return exp.Unix()
	}
	return time.Now().Add(time.Hour).Unix()
}

// displayNameClaims is the lookup order for a human-friendly name.
var displayNameClaims = []string{"given_name", "name", "unique_name", "preferred_username", "email", "sub"}

// DisplayNameFromToken derives a greeting name from the token payload,
// falling back to the login username when no usable claim exists. The
// "name" claim is trimmed to its first word.
func DisplayNameFromToken(token, username string) string {
	claims := DecodeClaims(token)
	for _, key := range displayNameClaims {
		value, ok := claims[key].(string)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if key == "name" {
			if fields := strings.Fields(value); len(fields) > 0 {
				return fields[0]
			}
			continue
		}
		return value
	}
	return username
}
