package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/models"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// AuthHandler exposes login, logout, and session introspection.
type AuthHandler struct {
	broker    *auth.SessionBroker
	directory *services.DirectoryService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(broker *auth.SessionBroker, directory *services.DirectoryService) *AuthHandler {
	return &AuthHandler{broker: broker, directory: directory}
}

type loginRequest struct {
	CompanyCode string `json:"company_code" validate:"required"`
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

type sessionPayload struct {
	Token          string          `json:"token,omitempty"`
	IsAdmin        bool            `json:"is_admin"`
	Username       string          `json:"username"`
	DisplayName    string          `json:"display_name"`
	OrgID          *string         `json:"org_id,omitempty"`
	OrgName        string          `json:"org_name,omitempty"`
	CompanyID      *string         `json:"company_id,omitempty"`
	CompanyCode    string          `json:"company_code,omitempty"`
	DelegatedExpTS int64           `json:"delegated_exp_ts,omitempty"`
	DelegatedRole  string          `json:"delegated_role,omitempty"`
	Features       map[string]bool `json:"features,omitempty"`
}

// Login authenticates against either realm and issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.broker.Authenticate(requestContext(c), req.CompanyCode, req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.describe(c, session, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// Logout revokes the presented bearer token. Always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		if err := h.broker.Revoke(requestContext(c), strings.TrimSpace(authz[7:])); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me describes the current session, including the effective feature set for
// tenant users. Features are recomputed on every call, never cached.
func (h *AuthHandler) Me(c *gin.Context) {
	session := middleware.CurrentSession(c)
	payload, err := h.describe(c, session, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

func (h *AuthHandler) describe(c *gin.Context, session *models.Session, includeToken bool) (*sessionPayload, error) {
	payload := &sessionPayload{
		IsAdmin:     session.IsAdmin,
		Username:    session.Username,
		DisplayName: session.DisplayName,
	}
	if includeToken {
		payload.Token = session.Token
	}

	if !session.IsTenant() {
		return payload, nil
	}

	org, err := h.directory.GetOrganization(requestContext(c), *session.OrgID)
	if err != nil {
		return nil, err
	}
	company, err := h.directory.GetCompany(requestContext(c), *session.CompanyID)
	if err != nil {
		return nil, err
	}

	payload.OrgID = session.OrgID
	payload.OrgName = org.Name
	payload.CompanyID = session.CompanyID
	payload.CompanyCode = company.Code
	payload.Features = h.directory.ResolveFeatures(org, company)

	if cred, err := h.broker.DelegatedCredential(session.DelegatedCipher); err == nil {
		payload.DelegatedExpTS = cred.ExpiresAt
		payload.DelegatedRole = cred.Role
	}

	return payload, nil
}
