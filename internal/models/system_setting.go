package models

import "time"

// SystemSetting stores small runtime key/value pairs, such as the generated
// delegated-credential encryption key.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
