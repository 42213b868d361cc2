package testutil

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/api"
	"github.com/sitebridgehq/sitebridge/internal/app"
	iauth "github.com/sitebridgehq/sitebridge/internal/auth"
	sharedtestutil "github.com/sitebridgehq/sitebridge/internal/database/testutil"
	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/crypto"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// Fixed admin realm used across handler tests.
const (
	AdminAccessCode = "SB-ADMIN"
	AdminUsername   = "root"
	AdminPassword   = "root-secret"
)

// Clock is a mutable test clock shared by every service in the Env.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubRemote stands in for the remote identity provider. Tests set Cred or
// Err to shape the outcome of delegated logins.
type StubRemote struct {
	mu       sync.Mutex
	Cred     *erp.Credential
	Err      error
	Calls    int
	LastConn erp.Connection
	LastUser string
}

func (r *StubRemote) Login(ctx context.Context, conn erp.Connection, username, password string) (*erp.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	r.LastConn = conn
	r.LastUser = username
	if r.Err != nil {
		return nil, r.Err
	}
	cred := *r.Cred
	cred.BaseURL = conn.BaseURL
	cred.CompanyCode = conn.CompanyCode
	cred.Username = username
	return &cred, nil
}

// StubCompleter replaces the assistant backend for helpdesk tests.
type StubCompleter struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	LastKey string
}

func (s *StubCompleter) Complete(ctx context.Context, apiKey string, history []models.ChatMessage, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastKey = apiKey
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// Env encapsulates a fully-wired API instance backed by an in-memory database
// for handler tests. Remote pieces are stubbed and injectable per test.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	Broker *iauth.SessionBroker
	Clock  *Clock

	Remote    *StubRemote
	Completer *StubCompleter

	// Projects / ProjectsErr drive the stubbed project lister.
	Projects    []erp.Project
	ProjectsErr error
}

// NewEnv provisions a fresh handler test environment with migrations applied
// and every route registered. All features default to enabled; tests narrow
// them via org or company overrides.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := &Clock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}

	directory, err := services.NewDirectoryService(db, services.DirectoryConfig{
		FeatureDefaults: map[string]bool{
			"projects.read":   true,
			"projects.backup": true,
			"ai.helpdesk":     true,
		},
		Clock: clock.Now,
	})
	require.NoError(t, err)

	hashed, err := crypto.HashPassword(AdminPassword)
	require.NoError(t, err)

	remote := &StubRemote{Cred: &erp.Credential{
		AccessToken: MakeToken(map[string]any{"given_name": "Jordan", "exp": clock.Now().Add(time.Hour).Unix()}),
		ExpiresAt:   clock.Now().Add(time.Hour).Unix(),
		Role:        "role-part",
	}}

	metering, err := services.NewMeteringService(db, clock.Now)
	require.NoError(t, err)

	broker, err := iauth.NewSessionBroker(db, directory, remote, iauth.BrokerConfig{
		Clock: clock.Now,
		Admin: iauth.AdminRealm{
			AccessCode: AdminAccessCode,
			Users:      map[string]string{AdminUsername: hashed},
		},
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		Metering:      metering,
	})
	require.NoError(t, err)

	organizations, err := services.NewOrganizationService(db)
	require.NoError(t, err)
	tickets, err := services.NewTicketService(db, clock.Now)
	require.NoError(t, err)
	completer := &StubCompleter{Reply: "stub answer"}
	helpdesk, err := services.NewHelpdeskService(db, completer, clock.Now)
	require.NoError(t, err)
	backups, err := services.NewBackupService(db, clock.Now)
	require.NoError(t, err)

	env := &Env{
		T:         t,
		DB:        db,
		Broker:    broker,
		Clock:     clock,
		Remote:    remote,
		Completer: completer,
	}

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{PerMinute: 10000, LoginPerMinute: 10000},
		},
		Remote: app.RemoteConfig{Timeout: 5 * time.Second, ClientTag: "sitebridge-test"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:            db,
		Config:        cfg,
		Broker:        broker,
		Directory:     directory,
		Organizations: organizations,
		Metering:      metering,
		Tickets:       tickets,
		Helpdesk:      helpdesk,
		Backups:       backups,
		ProjectLister: func(ctx context.Context, cred *erp.Credential) ([]erp.Project, error) {
			if env.ProjectsErr != nil {
				return nil, env.ProjectsErr
			}
			return env.Projects, nil
		},
	})
	require.NoError(t, err)

	env.Router = router
	return env
}

// SeedTenant inserts an org with one company, optionally mutated first.
func (e *Env) SeedTenant(mutate func(org *models.Organization, company *models.Company)) (*models.Organization, *models.Company) {
	e.T.Helper()

	org := &models.Organization{
		Name: "Acme Construction",
		License: models.License{
			Plan:             models.PlanYearly,
			Active:           true,
			CurrentPeriodEnd: e.Clock.Now().AddDate(1, 0, 0).Unix(),
		},
	}
	company := &models.Company{
		Code:              "ACME-1",
		BaseURL:           "https://erp.acme.test/itwo40/services",
		RemoteCompanyCode: "001",
	}
	if mutate != nil {
		mutate(org, company)
	}

	require.NoError(e.T, e.DB.Create(org).Error)
	company.OrgID = org.ID
	require.NoError(e.T, e.DB.Create(company).Error)
	return org, company
}

// MakeToken builds an unsigned JWT-shaped token from the supplied claims.
func MakeToken(claims map[string]any) string {
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

// SessionPayload mirrors the JSON returned by the auth endpoints.
type SessionPayload struct {
	Token          string          `json:"token"`
	IsAdmin        bool            `json:"is_admin"`
	Username       string          `json:"username"`
	DisplayName    string          `json:"display_name"`
	OrgID          *string         `json:"org_id"`
	OrgName        string          `json:"org_name"`
	CompanyID      *string         `json:"company_id"`
	CompanyCode    string          `json:"company_code"`
	DelegatedExpTS int64           `json:"delegated_exp_ts"`
	DelegatedRole  string          `json:"delegated_role"`
	Features       map[string]bool `json:"features"`
}

// Login authenticates and returns the issued session payload.
func (e *Env) Login(companyCode, username, password string) SessionPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"company_code": companyCode,
		"username":     username,
		"password":     password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var payload SessionPayload
	DecodeInto(e.T, resp.Data, &payload)
	require.NotEmpty(e.T, payload.Token)
	return payload
}

// LoginAdmin authenticates against the fixed admin realm.
func (e *Env) LoginAdmin() SessionPayload {
	return e.Login(AdminAccessCode, AdminUsername, AdminPassword)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
