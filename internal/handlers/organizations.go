package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/response"
)

// OrganizationHandler exposes the admin tenant directory.
type OrganizationHandler struct {
	service *services.OrganizationService
}

// NewOrganizationHandler constructs the handler.
func NewOrganizationHandler(service *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

type createOrgRequest struct {
	Name         string          `json:"name" validate:"required"`
	ContactEmail string          `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string          `json:"contact_phone"`
	Notes        string          `json:"notes"`
	Plan         string          `json:"plan"`
	PeriodEnd    int64           `json:"period_end"`
	Features     map[string]bool `json:"features"`
}

type updateOrgRequest struct {
	Name          *string         `json:"name"`
	ContactEmail  *string         `json:"contact_email" validate:"omitempty,email"`
	ContactPhone  *string         `json:"contact_phone"`
	Notes         *string         `json:"notes"`
	Plan          *string         `json:"plan"`
	LicenseActive *bool           `json:"license_active"`
	PeriodEnd     *int64          `json:"period_end"`
	Features      map[string]bool `json:"features"`
}

type createCompanyRequest struct {
	Code              string          `json:"code" validate:"required"`
	BaseURL           string          `json:"base_url" validate:"required,url"`
	RemoteCompanyCode string          `json:"remote_company_code" validate:"required"`
	AllowedUsers      []string        `json:"allowed_users"`
	Features          map[string]bool `json:"features"`
	AssistantAPIKey   string          `json:"assistant_api_key"`
}

type updateCompanyRequest struct {
	Code              *string         `json:"code"`
	BaseURL           *string         `json:"base_url" validate:"omitempty,url"`
	RemoteCompanyCode *string         `json:"remote_company_code"`
	AllowedUsers      []string        `json:"allowed_users"`
	Features          map[string]bool `json:"features"`
	LicenseActive     *bool           `json:"license_active"`
	LicensePeriodEnd  *int64          `json:"license_period_end"`
	AssistantAPIKey   *string         `json:"assistant_api_key"`
}

// List returns every organization with its companies.
func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.service.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, orgs)
}

// Get returns one organization.
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// Create registers an organization.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req createOrgRequest
	if !bindAndValidate(c, &req) {
		return
	}

	org, err := h.service.Create(requestContext(c), services.CreateOrganizationInput{
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Notes:        req.Notes,
		Plan:         req.Plan,
		PeriodEnd:    req.PeriodEnd,
		Features:     req.Features,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, org)
}

// Update modifies an organization.
func (h *OrganizationHandler) Update(c *gin.Context) {
	var req updateOrgRequest
	if !bindAndValidate(c, &req) {
		return
	}

	org, err := h.service.Update(requestContext(c), c.Param("id"), services.UpdateOrganizationInput{
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		Notes:         req.Notes,
		Plan:          req.Plan,
		LicenseActive: req.LicenseActive,
		PeriodEnd:     req.PeriodEnd,
		Features:      req.Features,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// Delete removes an organization and everything under it.
func (h *OrganizationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// CreateCompany registers a connection profile under an organization.
func (h *OrganizationHandler) CreateCompany(c *gin.Context) {
	var req createCompanyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.service.CreateCompany(requestContext(c), services.CreateCompanyInput{
		OrgID:             c.Param("id"),
		Code:              req.Code,
		BaseURL:           req.BaseURL,
		RemoteCompanyCode: req.RemoteCompanyCode,
		AllowedUsers:      req.AllowedUsers,
		Features:          req.Features,
		AssistantAPIKey:   req.AssistantAPIKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

// UpdateCompany modifies a connection profile.
func (h *OrganizationHandler) UpdateCompany(c *gin.Context) {
	var req updateCompanyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	company, err := h.service.UpdateCompany(requestContext(c), c.Param("id"), services.UpdateCompanyInput{
		Code:              req.Code,
		BaseURL:           req.BaseURL,
		RemoteCompanyCode: req.RemoteCompanyCode,
		AllowedUsers:      req.AllowedUsers,
		Features:          req.Features,
		LicenseActive:     req.LicenseActive,
		LicensePeriodEnd:  req.LicensePeriodEnd,
		AssistantAPIKey:   req.AssistantAPIKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// DeleteCompany removes a connection profile.
func (h *OrganizationHandler) DeleteCompany(c *gin.Context) {
	if err := h.service.DeleteCompany(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
