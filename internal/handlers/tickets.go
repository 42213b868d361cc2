package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// TicketHandler serves the support ticket surface for both realms.
type TicketHandler struct {
	tickets *services.TicketService
}

// NewTicketHandler constructs the handler.
func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

type createTicketRequest struct {
	Subject  string `json:"subject" validate:"required,max=200"`
	Priority string `json:"priority"`
	Text     string `json:"text" validate:"required"`
}

type replyRequest struct {
	Text string `json:"text" validate:"required"`
}

type adminTicketUpdateRequest struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Create opens a ticket for the current tenant user.
func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenant := middleware.CurrentTenant(c)
	ticket, err := h.tickets.Create(requestContext(c), services.CreateTicketInput{
		OrgID:     tenant.OrgID,
		CompanyID: &tenant.CompanyID,
		UserID:    &tenant.UserID,
		Subject:   req.Subject,
		Priority:  req.Priority,
		Text:      req.Text,
		Sender:    "user",
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, ticket)
}

// ListMine returns the current user's own tickets.
func (h *TicketHandler) ListMine(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	tickets, err := h.tickets.ListForUser(requestContext(c), tenant.OrgID, tenant.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tickets)
}

// GetMine returns one of the current user's own tickets.
func (h *TicketHandler) GetMine(c *gin.Context) {
	tenant := middleware.CurrentTenant(c)
	ticket, err := h.tickets.Get(requestContext(c), c.Param("id"), services.TicketScope{OrgID: tenant.OrgID, UserID: tenant.UserID})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ticket)
}

// Reply appends a user message to one of the caller's own tickets.
func (h *TicketHandler) Reply(c *gin.Context) {
	var req replyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenant := middleware.CurrentTenant(c)
	ticket, err := h.tickets.AddMessage(requestContext(c), c.Param("id"), services.TicketScope{OrgID: tenant.OrgID, UserID: tenant.UserID}, "user", req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ticket)
}

// AdminList returns tickets across all tenants, optionally by status.
func (h *TicketHandler) AdminList(c *gin.Context) {
	tickets, err := h.tickets.ListAll(requestContext(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tickets)
}

// AdminReply appends an admin message to any ticket.
func (h *TicketHandler) AdminReply(c *gin.Context) {
	var req replyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ticket, err := h.tickets.AddMessage(requestContext(c), c.Param("id"), services.TicketScope{}, "admin", req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ticket)
}

// AdminUpdateStatus transitions a ticket's status and/or priority.
func (h *TicketHandler) AdminUpdateStatus(c *gin.Context) {
	var req adminTicketUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ticket, err := h.tickets.AdminUpdate(requestContext(c), c.Param("id"), req.Status, req.Priority)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, ticket)
}
