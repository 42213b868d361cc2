package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/database/testutil"
	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/crypto"
)

type staticRemote struct{}

func (staticRemote) Login(_ context.Context, _ erp.Connection, username, _ string) (*erp.Credential, error) {
	return &erp.Credential{
		AccessToken: "x.y.z",
		Role:        "role",
		Username:    username,
	}, nil
}

func newAuthTestBroker(t *testing.T) *auth.SessionBroker {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	directory, err := services.NewDirectoryService(db, services.DirectoryConfig{})
	require.NoError(t, err)

	hash, err := crypto.HashPassword("secret")
	require.NoError(t, err)

	broker, err := auth.NewSessionBroker(db, directory, staticRemote{}, auth.BrokerConfig{
		Admin:         auth.AdminRealm{AccessCode: "ADMIN", Users: map[string]string{"root": hash}},
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	org := &models.Organization{Name: "Acme", License: models.License{Active: true}}
	require.NoError(t, db.Create(org).Error)
	company := &models.Company{OrgID: org.ID, Code: "ACME-1", BaseURL: "https://erp.test", RemoteCompanyCode: "001"}
	require.NoError(t, db.Create(company).Error)

	return broker
}

func newAuthTestRouter(broker *auth.SessionBroker) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	protected := r.Group("/", RequireSession(broker))
	protected.GET("/any", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	protected.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	protected.GET("/tenant", RequireTenantUser(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSession(t *testing.T) {
	broker := newAuthTestBroker(t)
	r := newAuthTestRouter(broker)

	require.Equal(t, http.StatusUnauthorized, do(r, "/any", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(r, "/any", "bogus-token").Code)

	session, err := broker.Authenticate(context.Background(), "ADMIN", "root", "secret")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, do(r, "/any", session.Token).Code)
}

func TestRealmNarrowing(t *testing.T) {
	broker := newAuthTestBroker(t)
	r := newAuthTestRouter(broker)

	admin, err := broker.Authenticate(context.Background(), "ADMIN", "root", "secret")
	require.NoError(t, err)
	tenant, err := broker.Authenticate(context.Background(), "ACME-1", "jwhite", "pw")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, do(r, "/admin", admin.Token).Code)
	require.Equal(t, http.StatusForbidden, do(r, "/admin", tenant.Token).Code)

	require.Equal(t, http.StatusOK, do(r, "/tenant", tenant.Token).Code)
	require.Equal(t, http.StatusForbidden, do(r, "/tenant", admin.Token).Code)
}
