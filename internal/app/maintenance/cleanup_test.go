package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/sitebridgehq/sitebridge/internal/auth"
	testutil "github.com/sitebridgehq/sitebridge/internal/database/testutil"
	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
)

type noopRemote struct{}

func (noopRemote) Login(ctx context.Context, conn erp.Connection, username, password string) (*erp.Credential, error) {
	return &erp.Credential{AccessToken: "a.b.c"}, nil
}

func newTestCleaner(t *testing.T, now time.Time, opts ...Option) (*Cleaner, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := func() time.Time { return now }

	directory, err := services.NewDirectoryService(db, services.DirectoryConfig{Clock: clock})
	require.NoError(t, err)

	broker, err := iauth.NewSessionBroker(db, directory, noopRemote{}, iauth.BrokerConfig{
		Clock:         clock,
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	backups, err := services.NewBackupService(db, clock)
	require.NoError(t, err)

	return NewCleaner(broker, backups, opts...), db
}

func TestCleanerRunOnce(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	cleaner, db := newTestCleaner(t, now, WithBackupRetention(48*time.Hour))

	expired := models.Session{
		Token:     "expired-token",
		UserID:    "admin:root",
		IsAdmin:   true,
		Username:  "root",
		ExpiresAt: now.Add(-time.Minute),
	}
	active := models.Session{
		Token:     "active-token",
		UserID:    "admin:root",
		IsAdmin:   true,
		Username:  "root",
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)
	require.NoError(t, db.Create(&active).Error)

	stale := models.BackupJob{
		BaseModel:   models.BaseModel{CreatedAt: now.Add(-72 * time.Hour)},
		OrgID:       "org-1",
		CompanyID:   "company-1",
		UserID:      "org-1:jwhite",
		ProjectID:   "101",
		ProjectName: "Harbour Bridge",
		Status:      models.BackupCompleted,
	}
	fresh := models.BackupJob{
		BaseModel:   models.BaseModel{CreatedAt: now.Add(-time.Hour)},
		OrgID:       "org-1",
		CompanyID:   "company-1",
		UserID:      "org-1:jwhite",
		ProjectID:   "102",
		ProjectName: "Depot Extension",
		Status:      models.BackupCompleted,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&fresh).Error)

	require.NoError(t, cleaner.RunOnce(context.Background()))

	var sessionCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.Equal(t, int64(1), sessionCount)

	var remaining models.Session
	require.NoError(t, db.Where("token = ?", "active-token").First(&remaining).Error)

	var jobCount int64
	require.NoError(t, db.Model(&models.BackupJob{}).Count(&jobCount).Error)
	require.Equal(t, int64(1), jobCount)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner, _ := newTestCleaner(t, now, WithCron(scheduler))

	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, scheduler.Entries(), 2)
}

func TestCleanerWithoutDependencies(t *testing.T) {
	cleaner := NewCleaner(nil, nil)
	require.NoError(t, cleaner.Start())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}
