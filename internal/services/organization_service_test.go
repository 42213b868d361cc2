package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitebridgehq/sitebridge/internal/database/testutil"
	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

func newOrganizationService(t *testing.T) *OrganizationService {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := NewOrganizationService(db)
	require.NoError(t, err)
	return service
}

func TestOrganizationCreate(t *testing.T) {
	service := newOrganizationService(t)

	org, err := service.Create(context.Background(), CreateOrganizationInput{
		Name:         "  Acme Construction  ",
		ContactEmail: "ops@acme.test",
		PeriodEnd:    1800000000,
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Construction", org.Name)
	require.Equal(t, models.PlanMonthly, org.License.Plan)
	require.True(t, org.License.Active)

	// usage counter row rides along with every new tenant
	var counter models.UsageCounter
	require.NoError(t, service.db.Take(&counter, "org_id = ?", org.ID).Error)

	_, err = service.Create(context.Background(), CreateOrganizationInput{Name: "   "})
	require.Error(t, err)

	_, err = service.Create(context.Background(), CreateOrganizationInput{Name: "X", Plan: "weekly"})
	require.Error(t, err)
}

func TestOrganizationUpdateLicense(t *testing.T) {
	service := newOrganizationService(t)

	org, err := service.Create(context.Background(), CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	inactive := false
	plan := models.PlanYearly
	updated, err := service.Update(context.Background(), org.ID, UpdateOrganizationInput{
		Plan:          &plan,
		LicenseActive: &inactive,
		Features:      map[string]bool{"projects.backup": true},
	})
	require.NoError(t, err)
	require.Equal(t, models.PlanYearly, updated.License.Plan)
	require.False(t, updated.License.Active)
	require.True(t, updated.Features.Data()["projects.backup"])
}

func TestCompanyLifecycle(t *testing.T) {
	service := newOrganizationService(t)

	org, err := service.Create(context.Background(), CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	company, err := service.CreateCompany(context.Background(), CreateCompanyInput{
		OrgID:             org.ID,
		Code:              "ACME-1",
		BaseURL:           "https://erp.acme.test/itwo40/services/",
		RemoteCompanyCode: "001",
		AllowedUsers:      []string{" JWhite ", "jwhite", "pmiller"},
	})
	require.NoError(t, err)
	require.Equal(t, "https://erp.acme.test/itwo40/services", company.BaseURL)
	require.Equal(t, []string{"jwhite", "pmiller"}, []string(company.AllowedUsers))

	// login codes collide case-insensitively
	_, err = service.CreateCompany(context.Background(), CreateCompanyInput{
		OrgID:             org.ID,
		Code:              "acme-1",
		BaseURL:           "https://other.test",
		RemoteCompanyCode: "002",
	})
	require.ErrorIs(t, err, ErrLoginCodeTaken)

	newCode := "ACME-2"
	updated, err := service.UpdateCompany(context.Background(), company.ID, UpdateCompanyInput{Code: &newCode})
	require.NoError(t, err)
	require.Equal(t, "ACME-2", updated.Code)

	require.NoError(t, service.DeleteCompany(context.Background(), company.ID))
	err = service.DeleteCompany(context.Background(), company.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrganizationDeleteCascades(t *testing.T) {
	service := newOrganizationService(t)

	org, err := service.Create(context.Background(), CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	company, err := service.CreateCompany(context.Background(), CreateCompanyInput{
		OrgID:             org.ID,
		Code:              "ACME-1",
		BaseURL:           "https://erp.acme.test",
		RemoteCompanyCode: "001",
	})
	require.NoError(t, err)

	session := &models.Session{
		Token:     "tok-1",
		UserID:    org.ID + ":jwhite",
		OrgID:     &org.ID,
		CompanyID: &company.ID,
		Username:  "jwhite",
	}
	require.NoError(t, service.db.Create(session).Error)

	require.NoError(t, service.Delete(context.Background(), org.ID))

	var sessions, companies, counters int64
	require.NoError(t, service.db.Model(&models.Session{}).Count(&sessions).Error)
	require.NoError(t, service.db.Model(&models.Company{}).Count(&companies).Error)
	require.NoError(t, service.db.Model(&models.UsageCounter{}).Count(&counters).Error)
	require.Zero(t, sessions)
	require.Zero(t, companies)
	require.Zero(t, counters)
}
