package models

import "gorm.io/datatypes"

// Company is a connection profile within an organization: the public login
// code users type on the login form plus the remote-system parameters used
// to authenticate them against the ERP platform.
type Company struct {
	BaseModel

	OrgID        string        `gorm:"type:uuid;not null;index" json:"org_id"`
	Organization *Organization `gorm:"foreignKey:OrgID" json:"organization,omitempty"`

	// Code is the public login code (e.g. "TNG-100"). Matched case-insensitively.
	Code string `gorm:"uniqueIndex;not null" json:"code"`

	// BaseURL points at the remote ERP service root (".../itwo40/services").
	BaseURL string `gorm:"not null" json:"base_url"`

	// RemoteCompanyCode is the company identifier inside the remote system.
	RemoteCompanyCode string `gorm:"not null" json:"remote_company_code"`

	// AllowedUsers restricts logins to the listed remote usernames when non-empty.
	AllowedUsers datatypes.JSONSlice[string] `json:"allowed_users"`

	// Features overlays organization-level flags; company wins ties.
	Features datatypes.JSONType[map[string]bool] `json:"features"`

	// Optional per-company license override. Nil fields fall back to the
	// owning organization's license.
	LicenseActive    *bool  `json:"license_active,omitempty"`
	LicensePeriodEnd *int64 `json:"license_period_end,omitempty"`

	// AssistantAPIKey is the per-company credential for the AI helpdesk.
	AssistantAPIKey string `json:"-"`
}
