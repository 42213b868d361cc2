package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is a bearer-token session issued by the broker. Admin sessions
// carry no org/company; tenant sessions carry both plus an encrypted
// delegated credential snapshot for later remote calls.
type Session struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`

	// Token is the opaque bearer credential. Generated once, never reused.
	Token string `gorm:"uniqueIndex;not null" json:"-"`

	// UserID is the stable identity: "admin:<username>" for admins,
	// "<org_id>:<username>" for tenant users.
	UserID string `gorm:"not null;index" json:"user_id"`

	IsAdmin   bool    `gorm:"not null" json:"is_admin"`
	OrgID     *string `gorm:"type:uuid;index" json:"org_id,omitempty"`
	CompanyID *string `gorm:"type:uuid" json:"company_id,omitempty"`

	Username    string `gorm:"not null" json:"username"`
	DisplayName string `json:"display_name"`

	// DelegatedCipher holds the AES-GCM encrypted delegated credential
	// snapshot. Empty for admin sessions.
	DelegatedCipher string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsTenant reports whether the session belongs to a tenant user with a
// resolved org and company.
func (s *Session) IsTenant() bool {
	return !s.IsAdmin && s.OrgID != nil && s.CompanyID != nil
}
