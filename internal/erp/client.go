package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every remote round-trip so an unreachable ERP host
// cannot exhaust server capacity.
const DefaultTimeout = 30 * time.Second

const defaultClientTag = "sitebridge"

// Connection identifies one remote ERP endpoint plus the company scope used
// when signing in.
type Connection struct {
	BaseURL     string
	CompanyCode string
}

// Credential is the delegated identity snapshot returned by a successful
// remote login. It is embedded (encrypted) in tenant sessions so later
// remote calls avoid re-authentication.
type Credential struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	Role        string `json:"role"`
	BaseURL     string `json:"base_url"`
	CompanyCode string `json:"company_code"`
	Username    string `json:"username"`
}

// AuthError carries the remote system's failure signal for classification.
// The signal text is for internal matching and logging only; it must never
// be shown to end users.
type AuthError struct {
	StatusCode int
	Signal     string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("erp: login rejected (status %d): %s", e.StatusCode, e.Signal)
}

// Config bundles the options required to construct a Client.
type Config struct {
	Connection Connection
	ClientTag  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a thin wrapper around the remote ERP's login and public APIs.
type Client struct {
	http      *http.Client
	conn      Connection
	clientTag string
}

// NewClient builds a Client for the given connection parameters.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Connection.BaseURL) == "" {
		return nil, errors.New("erp: base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	tag := strings.TrimSpace(cfg.ClientTag)
	if tag == "" {
		tag = defaultClientTag
	}

	return &Client{
		http:      httpClient,
		conn:      cfg.Connection,
		clientTag: tag,
	}, nil
}

// Login exchanges username/password for a delegated credential using the
// stable logon endpoint. The response body is a quoted token string.
func (c *Client) Login(ctx context.Context, username, password string) (*Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("erp: marshal logon payload: %w", err)
	}

	url := strings.TrimRight(c.conn.BaseURL, "/") + "/basics/api/2.0/logon"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("erp: build logon request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Tag", c.clientTag)

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp: logon request: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(rsp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("erp: read logon response: %w", err)
	}

	if rsp.StatusCode != http.StatusOK {
		return nil, &AuthError{StatusCode: rsp.StatusCode, Signal: truncateSignal(string(body))}
	}

	token := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if !strings.Contains(token, ".") {
		return nil, &AuthError{StatusCode: rsp.StatusCode, Signal: "logon returned a malformed token"}
	}

	role, err := c.fetchRole(ctx, token)
	if err != nil {
		return nil, err
	}

	return &Credential{
		AccessToken: token,
		ExpiresAt:   TokenExpiry(token),
		Role:        role,
		BaseURL:     c.conn.BaseURL,
		CompanyCode: c.conn.CompanyCode,
		Username:    username,
	}, nil
}

// fetchRole resolves the secure client role part required on authenticated calls.
func (c *Client) fetchRole(ctx context.Context, token string) (string, error) {
	url := fmt.Sprintf(
		"%s/basics/publicapi/company/1.0/checkcompanycode?requestedSignedInCompanyCode=%s",
		strings.TrimRight(c.conn.BaseURL, "/"), c.conn.CompanyCode,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("erp: build role request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-Tag", c.clientTag)

	rsp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("erp: role request: %w", err)
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(rsp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("erp: read role response: %w", err)
	}

	if rsp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: rsp.StatusCode, Signal: truncateSignal(string(body))}
	}

	var parsed struct {
		SecureClientRolePart string `json:"secureClientRolePart"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("erp: decode role response: %w", err)
	}
	if parsed.SecureClientRolePart == "" {
		return "", &AuthError{StatusCode: rsp.StatusCode, Signal: "secureClientRolePart missing in response"}
	}

	return parsed.SecureClientRolePart, nil
}

// authHeaders builds the header set for authenticated public-API calls.
func authHeaders(cred *Credential) (http.Header, error) {
	clientContext, err := json.Marshal(map[string]any{
		"dataLanguageId":   1,
		"language":         "en",
		"culture":          "en-gb",
		"secureClientRole": cred.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("erp: marshal client context: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.AccessToken)
	header.Set("Client-Context", string(clientContext))
	header.Set("Accept", "application/json")
	header.Set("Content-Type", "application/json")
	return header, nil
}

func truncateSignal(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
