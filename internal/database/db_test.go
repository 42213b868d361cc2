package database

import (
	"testing"

	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	if err := AutoMigrateAndSeed(db); err != nil {
		t.Fatalf("auto migrate and seed failed: %v", err)
	}

	org := models.Organization{Name: "Seeded Org", License: models.License{Active: true}}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create org: %v", err)
	}

	if err := SeedData(db); err != nil {
		t.Fatalf("re-seed: %v", err)
	}

	var counters int64
	if err := db.Model(&models.UsageCounter{}).Where("org_id = ?", org.ID).Count(&counters).Error; err != nil {
		t.Fatalf("count usage counters: %v", err)
	}
	if counters != 1 {
		t.Fatalf("expected 1 usage counter for org, got %d", counters)
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
