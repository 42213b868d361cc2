package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/metrics"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

const featureHelpdesk = "ai.helpdesk"

// HelpdeskHandler serves the AI helpdesk chat for tenant users.
type HelpdeskHandler struct {
	helpdesk  *services.HelpdeskService
	directory *services.DirectoryService
}

// NewHelpdeskHandler constructs the handler.
func NewHelpdeskHandler(helpdesk *services.HelpdeskService, directory *services.DirectoryService) *HelpdeskHandler {
	return &HelpdeskHandler{helpdesk: helpdesk, directory: directory}
}

type chatRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

// Chat asks the assistant a question. Gated by the ai.helpdesk feature,
// re-evaluated on every call.
func (h *HelpdeskHandler) Chat(c *gin.Context) {
	var req chatRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenant := middleware.CurrentTenant(c)
	if err := h.ensureFeature(c); err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxFeatureKey, featureHelpdesk)

	conversation, err := h.helpdesk.Ask(requestContext(c), tenant.OrgID, tenant.CompanyID, tenant.UserID, req.Question)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversation)
}

// History returns the caller's conversation.
func (h *HelpdeskHandler) History(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	if err := h.ensureFeature(c); err != nil {
		response.Error(c, err)
		return
	}

	conversation, err := h.helpdesk.History(requestContext(c), tenant.OrgID, tenant.CompanyID, tenant.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, conversation)
}

// Clear wipes the caller's conversation.
func (h *HelpdeskHandler) Clear(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	if err := h.helpdesk.Clear(requestContext(c), tenant.OrgID, tenant.CompanyID, tenant.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

func (h *HelpdeskHandler) ensureFeature(c *gin.Context) error {
	tenant := middleware.CurrentTenant(c)
	err := h.directory.EnsureFeature(requestContext(c), tenant.OrgID, tenant.CompanyID, featureHelpdesk)
	if err != nil {
		metrics.FeatureChecks.WithLabelValues(featureHelpdesk, "deny").Inc()
		return err
	}
	metrics.FeatureChecks.WithLabelValues(featureHelpdesk, "allow").Inc()
	return nil
}
