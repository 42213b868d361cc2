package models

import "gorm.io/datatypes"

// License plan identifiers accepted on organizations.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// License captures the billing state gating every tenant login.
type License struct {
	Plan             string `gorm:"default:monthly" json:"plan"`
	Active           bool   `gorm:"default:true" json:"active"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// Organization is a paying tenant owning one or more companies.
type Organization struct {
	BaseModel

	Name         string `gorm:"not null" json:"name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Notes        string `json:"notes"`

	License License `gorm:"embedded;embeddedPrefix:license_" json:"license"`

	// Features overlays the system-wide default feature set, keyed by
	// feature identifiers such as "projects.backup" or "ai.helpdesk".
	Features datatypes.JSONType[map[string]bool] `json:"features"`

	Companies []Company `gorm:"foreignKey:OrgID" json:"companies,omitempty"`
}
