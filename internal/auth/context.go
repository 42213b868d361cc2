package auth

import (
	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

// AdminContext is the narrowed view of an admin session. It carries no
// tenant fields, so admin-only handlers cannot accidentally act on an org.
type AdminContext struct {
	SessionID   string
	Username    string
	DisplayName string
}

// TenantContext is the narrowed view of a tenant-user session, carrying the
// resolved org and company plus the encrypted delegated credential.
type TenantContext struct {
	SessionID   string
	UserID      string
	OrgID       string
	CompanyID   string
	Username    string
	DisplayName string

	// DelegatedCipher is the encrypted remote credential snapshot; decrypt
	// it through SessionBroker.DelegatedCredential.
	DelegatedCipher string
}

// AdminFromSession narrows a validated session to the admin realm.
func AdminFromSession(session *models.Session) (*AdminContext, error) {
	if session == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !session.IsAdmin {
		return nil, apperrors.ErrAdminRequired
	}
	return &AdminContext{
		SessionID:   session.ID,
		Username:    session.Username,
		DisplayName: session.DisplayName,
	}, nil
}

// TenantFromSession narrows a validated session to a tenant user. Admin
// sessions are rejected; a tenant session missing its org or company is a
// broker bug surfaced as a bad request rather than a panic downstream.
func TenantFromSession(session *models.Session) (*TenantContext, error) {
	if session == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if session.IsAdmin {
		return nil, apperrors.ErrOrgUserRequired
	}
	if session.OrgID == nil || session.CompanyID == nil {
		return nil, apperrors.NewBadRequest("Missing org or company on session")
	}
	return &TenantContext{
		SessionID:       session.ID,
		UserID:          session.UserID,
		OrgID:           *session.OrgID,
		CompanyID:       *session.CompanyID,
		Username:        session.Username,
		DisplayName:     session.DisplayName,
		DelegatedCipher: session.DelegatedCipher,
	}, nil
}
