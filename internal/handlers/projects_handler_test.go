package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/sitebridgehq/sitebridge/internal/erp"
	apitest "github.com/sitebridgehq/sitebridge/internal/handlers/testutil"
	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

func TestListProjectsWithDelegatedCredential(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	env.Projects = []erp.Project{
		{ID: "101", Name: "Airport Terminal"},
		{ID: "102", Name: "Harbour Bridge"},
	}
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodGet, "/api/user/projects", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var projects []erp.Project
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &projects)
	require.Len(t, projects, 2)
	require.Equal(t, "Airport Terminal", projects[0].Name)

	// Remote usage is metered against the org.
	var counter models.UsageCounter
	require.NoError(t, env.DB.First(&counter).Error)
	require.Equal(t, int64(1), counter.TotalRemoteCalls)
}

func TestListProjectsSurfacesRemoteFailure(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	env.ProjectsErr = apperrors.ErrRemoteUnavailable
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodGet, "/api/user/projects", nil, tenant.Token)
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
}

func TestListProjectsHonoursFeatureGate(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, company *models.Company) {
		company.Features = datatypes.NewJSONType(map[string]bool{"projects.read": false})
	})
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodGet, "/api/user/projects", nil, tenant.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "FEATURE_DISABLED", apitest.DecodeResponse(t, w).Error.Code)
}

func TestGatedRoutesStopWhenLicenseLapses(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, _ *models.Company) {
		org.License.CurrentPeriodEnd = env.Clock.Now().Add(time.Hour).Unix()
	})
	env.Projects = []erp.Project{{ID: "101", Name: "Airport Terminal"}}
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodGet, "/api/user/projects", nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the paid period ends while the session is still valid
	env.Clock.Advance(2 * time.Hour)
	w = env.Request(http.MethodGet, "/api/user/projects", nil, tenant.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "LICENSE_INACTIVE", apitest.DecodeResponse(t, w).Error.Code)
}

func TestProjectRoutesRejectAdmins(t *testing.T) {
	env := apitest.NewEnv(t)
	admin := env.LoginAdmin()

	w := env.Request(http.MethodGet, "/api/user/projects", nil, admin.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestQueueAndFetchBackup(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(nil)
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodPost, "/api/user/projects/backup", map[string]any{
		"project_id":   "101",
		"project_name": "Airport Terminal",
		"options":      map[string]bool{"include_estimates": true},
	}, tenant.Token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job models.BackupJob
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &job)
	require.Equal(t, models.BackupCompleted, job.Status)
	require.NotEmpty(t, job.Log)

	w = env.Request(http.MethodGet, "/api/user/projects/backup/"+job.ID, nil, tenant.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	apitest.DecodeInto(t, apitest.DecodeResponse(t, w).Data, &job)
	require.Equal(t, "101", job.ProjectID)
}

func TestBackupHonoursFeatureGate(t *testing.T) {
	env := apitest.NewEnv(t)
	env.SeedTenant(func(org *models.Organization, company *models.Company) {
		org.Features = datatypes.NewJSONType(map[string]bool{"projects.backup": false})
	})
	tenant := env.Login("ACME-1", "jwhite", "pw")

	w := env.Request(http.MethodPost, "/api/user/projects/backup", map[string]any{
		"project_id": "101",
	}, tenant.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "FEATURE_DISABLED", apitest.DecodeResponse(t, w).Error.Code)
}
