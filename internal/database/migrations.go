package database

import (
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Organization{},
		&models.Company{},
		&models.Session{},
		&models.UsageCounter{},
		&models.Ticket{},
		&models.HelpdeskConversation{},
		&models.BackupJob{},
		&models.SystemSetting{},
	)
}

// SeedData ensures every organization has a usage counter row, so metering
// increments never race against row creation on first login.
func SeedData(db *gorm.DB) error {
	var orgIDs []string
	if err := db.Model(&models.Organization{}).Pluck("id", &orgIDs).Error; err != nil {
		return err
	}

	for _, orgID := range orgIDs {
		counter := models.UsageCounter{OrgID: orgID}
		if err := db.Where(models.UsageCounter{OrgID: orgID}).Attrs(counter).FirstOrCreate(&models.UsageCounter{}).Error; err != nil {
			return err
		}
	}

	return nil
}
