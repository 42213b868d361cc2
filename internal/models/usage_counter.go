package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageCounter accumulates per-organization request and remote-call counts.
// One row per organization; incremented as a side effect of successful
// requests, never consulted on the auth path.
type UsageCounter struct {
	OrgID string `gorm:"primaryKey;type:uuid" json:"org_id"`

	// OrgName is attached on read for the admin overview; it is not stored.
	OrgName string `gorm:"-" json:"org_name,omitempty"`

	TotalRequests int64                                `gorm:"default:0" json:"total_requests"`
	PerRoute      datatypes.JSONType[map[string]int64] `json:"per_route"`
	PerFeature    datatypes.JSONType[map[string]int64] `json:"per_feature"`

	TotalRemoteCalls int64                                `gorm:"default:0" json:"total_remote_calls"`
	RemoteByFeature  datatypes.JSONType[map[string]int64] `json:"remote_calls_by_feature"`

	UpdatedAt time.Time `json:"updated_at"`
}
