package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/database/testutil"
	"github.com/sitebridgehq/sitebridge/internal/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seedTenant(t *testing.T, db *gorm.DB, clock *testClock, mutate func(org *models.Organization, company *models.Company)) (*models.Organization, *models.Company) {
	t.Helper()

	org := &models.Organization{
		Name: "Acme Construction",
		License: models.License{
			Plan:             models.PlanYearly,
			Active:           true,
			CurrentPeriodEnd: clock.Now().AddDate(1, 0, 0).Unix(),
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

	require.NoError(t, db.Create(org).Error)
	company.OrgID = org.ID
	require.NoError(t, db.Create(company).Error)
	return org, company
}

func newDirectoryEnv(t *testing.T, defaults map[string]bool) (*gorm.DB, *testClock, *DirectoryService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newTestClock()
	directory, err := NewDirectoryService(db, DirectoryConfig{FeatureDefaults: defaults, Clock: clock.Now})
	require.NoError(t, err)
	return db, clock, directory
}
