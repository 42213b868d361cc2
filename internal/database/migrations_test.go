package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

func TestAutoMigrateCreatesCoreTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	tables := []interface{}{
		&models.Organization{},
		&models.Company{},
		&models.Session{},
		&models.UsageCounter{},
		&models.Ticket{},
		&models.HelpdeskConversation{},
		&models.BackupJob{},
		&models.SystemSetting{},
	}

	for _, table := range tables {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
}

func TestAutoMigrateSessionTokenUnique(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	first := models.Session{Token: "tok-1", UserID: "admin:root", Username: "root"}
	require.NoError(t, db.Create(&first).Error)

	dup := models.Session{Token: "tok-1", UserID: "admin:other", Username: "other"}
	require.Error(t, db.Create(&dup).Error, "expected unique index on session token")
}
