package models

import "gorm.io/datatypes"

// Backup job states.
const (
	BackupPending   = "pending"
	BackupRunning   = "running"
	BackupCompleted = "completed"
	BackupFailed    = "failed"
)

// BackupOptions selects which project artefacts a backup should include.
type BackupOptions struct {
	IncludeEstimates  bool `json:"include_estimates"`
	IncludeLineItems  bool `json:"include_lineitems"`
	IncludeResources  bool `json:"include_resources"`
	IncludeActivities bool `json:"include_activities"`
}

// BackupJob tracks a project backup requested by a tenant user.
type BackupJob struct {
	BaseModel

	OrgID     string `gorm:"type:uuid;not null;index" json:"org_id"`
	CompanyID string `gorm:"type:uuid;not null" json:"company_id"`
	UserID    string `gorm:"not null" json:"user_id"`

	ProjectID   string `gorm:"not null" json:"project_id"`
	ProjectName string `json:"project_name"`

	Options datatypes.JSONType[BackupOptions] `json:"options"`
	Status  string                            `gorm:"default:pending;index" json:"status"`
	Log     datatypes.JSONSlice[string]       `json:"log"`

	DownloadPath *string `json:"download_path,omitempty"`
}
