package models

import "gorm.io/datatypes"

// Ticket priorities and statuses.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"

	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// TicketMessage is a single entry in a ticket conversation.
type TicketMessage struct {
	ID        string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"` // "user" or "admin"
	Text      string `json:"text"`
}

// Ticket is a support request raised by a tenant user and answered by admins.
type Ticket struct {
	BaseModel

	OrgID     string  `gorm:"type:uuid;not null;index" json:"org_id"`
	CompanyID *string `gorm:"type:uuid" json:"company_id,omitempty"`
	UserID    *string `gorm:"index" json:"user_id,omitempty"`

	Subject  string `gorm:"not null" json:"subject"`
	Priority string `gorm:"default:normal" json:"priority"`
	Status   string `gorm:"default:open;index" json:"status"`

	Messages datatypes.JSONSlice[TicketMessage] `json:"messages"`
}
