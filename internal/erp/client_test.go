package erp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	encode := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}

	header := encode(map[string]string{"alg": "none", "typ": "JWT"})
	payload := encode(claims)
	return header + "." + payload + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

func TestClientLogin(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Unix()
	var token string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/basics/api/2.0/logon":
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "sitebridge", r.Header.Get("X-Client-Tag"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "jwhite", body["username"])
			require.Equal(t, "secret", body["password"])

			w.Write([]byte(`"` + token + `"`))
		case "/basics/publicapi/company/1.0/checkcompanycode":
			require.Equal(t, "ACME-1", r.URL.Query().Get("requestedSignedInCompanyCode"))
			require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(map[string]string{"secureClientRolePart": "role-part-7"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	token = makeToken(t, map[string]any{"exp": exp, "given_name": "Jordan"})

	client, err := NewClient(Config{Connection: Connection{BaseURL: server.URL, CompanyCode: "ACME-1"}})
	require.NoError(t, err)

	cred, err := client.Login(context.Background(), "jwhite", "secret")
	require.NoError(t, err)
	require.Equal(t, token, cred.AccessToken)
	require.Equal(t, exp, cred.ExpiresAt)
	require.Equal(t, "role-part-7", cred.Role)
	require.Equal(t, server.URL, cred.BaseURL)
	require.Equal(t, "ACME-1", cred.CompanyCode)
	require.Equal(t, "jwhite", cred.Username)
}

func TestClientLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Connection: Connection{BaseURL: server.URL, CompanyCode: "ACME-1"}})
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "jwhite", "wrong")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusBadRequest, authErr.StatusCode)
	require.Contains(t, authErr.Signal, "invalid_grant")
}

func TestClientLoginMalformedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"not-a-jwt"`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Connection: Connection{BaseURL: server.URL, CompanyCode: "ACME-1"}})
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "jwhite", "secret")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{Connection: Connection{CompanyCode: "ACME-1"}})
	require.Error(t, err)
}
