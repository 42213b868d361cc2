package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

// ErrLoginCodeTaken is returned when a company login code collides with an
// existing one. Codes are unique case-insensitively across all tenants.
var ErrLoginCodeTaken = apperrors.New("LOGIN_CODE_TAKEN", "Login code already in use", http.StatusConflict)

// CreateOrganizationInput captures the attributes required to register a tenant.
type CreateOrganizationInput struct {
	Name         string
	ContactEmail string
	ContactPhone string
	Notes        string
	Plan         string
	PeriodEnd    int64
	Features     map[string]bool
}

// UpdateOrganizationInput represents mutable organization fields. Nil
// pointers leave the stored value untouched.
type UpdateOrganizationInput struct {
	Name          *string
	ContactEmail  *string
	ContactPhone  *string
	Notes         *string
	Plan          *string
	LicenseActive *bool
	PeriodEnd     *int64
	Features      map[string]bool
}

// CreateCompanyInput registers a connection profile under an organization.
type CreateCompanyInput struct {
	OrgID             string
	Code              string
	BaseURL           string
	RemoteCompanyCode string
	AllowedUsers      []string
	Features          map[string]bool
	AssistantAPIKey   string
}

// UpdateCompanyInput represents mutable company fields.
type UpdateCompanyInput struct {
	Code              *string
	BaseURL           *string
	RemoteCompanyCode *string
	AllowedUsers      []string
	Features          map[string]bool
	LicenseActive     *bool
	LicensePeriodEnd  *int64
	AssistantAPIKey   *string
}

// OrganizationService manages the admin-facing tenant directory: the
// organizations, their companies, and their licenses.
type OrganizationService struct {
	db *gorm.DB
}

// NewOrganizationService constructs an OrganizationService instance.
func NewOrganizationService(db *gorm.DB) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	return &OrganizationService{db: db}, nil
}

// Create registers a new organization with an active license.
func (s *OrganizationService) Create(ctx context.Context, input CreateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("Organization name is required")
	}

	plan := strings.TrimSpace(input.Plan)
	if plan == "" {
		plan = models.PlanMonthly
	}
	if plan != models.PlanMonthly && plan != models.PlanYearly {
		return nil, apperrors.NewBadRequest("Unknown license plan")
	}

	org := &models.Organization{
		Name:         name,
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		ContactPhone: strings.TrimSpace(input.ContactPhone),
		Notes:        strings.TrimSpace(input.Notes),
		License: models.License{
			Plan:             plan,
			Active:           true,
			CurrentPeriodEnd: input.PeriodEnd,
		},
	}
	if input.Features != nil {
		org.Features = datatypes.NewJSONType(input.Features)
	}

	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, fmt.Errorf("organization service: create organization: %w", err)
	}

	if err := s.db.WithContext(ctx).
		FirstOrCreate(&models.UsageCounter{OrgID: org.ID}, models.UsageCounter{OrgID: org.ID}).Error; err != nil {
		return nil, fmt.Errorf("organization service: seed usage counter: %w", err)
	}

	return org, nil
}

// GetByID loads an organization with its companies.
func (s *OrganizationService) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).Preload("Companies").First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: get organization: %w", err)
	}
	return &org, nil
}

// List returns all organizations with companies, ordered by name.
func (s *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).Preload("Companies").Order("name ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("organization service: list organizations: %w", err)
	}
	return orgs, nil
}

// Update modifies organization metadata and license fields.
func (s *OrganizationService) Update(ctx context.Context, id string, input UpdateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	org, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("Organization name is required")
		}
		updates["name"] = name
	}
	if input.ContactEmail != nil {
		updates["contact_email"] = strings.TrimSpace(*input.ContactEmail)
	}
	if input.ContactPhone != nil {
		updates["contact_phone"] = strings.TrimSpace(*input.ContactPhone)
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}
	if input.Plan != nil {
		plan := strings.TrimSpace(*input.Plan)
		if plan != models.PlanMonthly && plan != models.PlanYearly {
			return nil, apperrors.NewBadRequest("Unknown license plan")
		}
		updates["license_plan"] = plan
	}
	if input.LicenseActive != nil {
		updates["license_active"] = *input.LicenseActive
	}
	if input.PeriodEnd != nil {
		updates["license_current_period_end"] = *input.PeriodEnd
	}
	if input.Features != nil {
		updates["features"] = datatypes.NewJSONType(input.Features)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("organization service: update organization: %w", err)
		}
	}

	return s.GetByID(ctx, id)
}

// Delete removes an organization together with its companies, sessions, and
// usage counters.
func (s *OrganizationService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	org, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ?", org.ID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("organization service: delete sessions: %w", err)
		}
		if err := tx.Where("org_id = ?", org.ID).Delete(&models.Company{}).Error; err != nil {
			return fmt.Errorf("organization service: delete companies: %w", err)
		}
		if err := tx.Where("org_id = ?", org.ID).Delete(&models.UsageCounter{}).Error; err != nil {
			return fmt.Errorf("organization service: delete usage counter: %w", err)
		}
		if err := tx.Delete(org).Error; err != nil {
			return fmt.Errorf("organization service: delete organization: %w", err)
		}
		return nil
	})
}

// CreateCompany registers a connection profile under an organization.
func (s *OrganizationService) CreateCompany(ctx context.Context, input CreateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetByID(ctx, input.OrgID); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(input.Code)
	baseURL := strings.TrimSpace(input.BaseURL)
	remoteCode := strings.TrimSpace(input.RemoteCompanyCode)
	if code == "" || baseURL == "" || remoteCode == "" {
		return nil, apperrors.NewBadRequest("Login code, base URL, and remote company code are required")
	}

	if err := s.ensureCodeAvailable(ctx, code, ""); err != nil {
		return nil, err
	}

	company := &models.Company{
		OrgID:             input.OrgID,
		Code:              code,
		BaseURL:           strings.TrimRight(baseURL, "/"),
		RemoteCompanyCode: remoteCode,
		AllowedUsers:      normaliseUsers(input.AllowedUsers),
		AssistantAPIKey:   strings.TrimSpace(input.AssistantAPIKey),
	}
	if input.Features != nil {
		company.Features = datatypes.NewJSONType(input.Features)
	}

	if err := s.db.WithContext(ctx).Create(company).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrLoginCodeTaken
		}
		return nil, fmt.Errorf("organization service: create company: %w", err)
	}
	return company, nil
}

// UpdateCompany modifies a connection profile.
func (s *OrganizationService) UpdateCompany(ctx context.Context, id string, input UpdateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)

	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: get company: %w", err)
	}

	updates := map[string]any{}
	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		if code == "" {
			return nil, apperrors.NewBadRequest("Login code is required")
		}
		if err := s.ensureCodeAvailable(ctx, code, company.ID); err != nil {
			return nil, err
		}
		updates["code"] = code
	}
	if input.BaseURL != nil {
		baseURL := strings.TrimSpace(*input.BaseURL)
		if baseURL == "" {
			return nil, apperrors.NewBadRequest("Base URL is required")
		}
		updates["base_url"] = strings.TrimRight(baseURL, "/")
	}
	if input.RemoteCompanyCode != nil {
		updates["remote_company_code"] = strings.TrimSpace(*input.RemoteCompanyCode)
	}
	if input.AllowedUsers != nil {
		updates["allowed_users"] = datatypes.NewJSONSlice(normaliseUsers(input.AllowedUsers))
	}
	if input.Features != nil {
		updates["features"] = datatypes.NewJSONType(input.Features)
	}
	if input.LicenseActive != nil {
		updates["license_active"] = *input.LicenseActive
	}
	if input.LicensePeriodEnd != nil {
		updates["license_period_end"] = *input.LicensePeriodEnd
	}
	if input.AssistantAPIKey != nil {
		updates["assistant_api_key"] = strings.TrimSpace(*input.AssistantAPIKey)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&company).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, ErrLoginCodeTaken
			}
			return nil, fmt.Errorf("organization service: update company: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("organization service: reload company: %w", err)
	}
	return &company, nil
}

// DeleteCompany removes a connection profile and its tenant sessions.
func (s *OrganizationService) DeleteCompany(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("organization service: get company: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company_id = ?", company.ID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("organization service: delete sessions: %w", err)
		}
		if err := tx.Delete(&company).Error; err != nil {
			return fmt.Errorf("organization service: delete company: %w", err)
		}
		return nil
	})
}

func (s *OrganizationService) ensureCodeAvailable(ctx context.Context, code, excludeID string) error {
	query := s.db.WithContext(ctx).Model(&models.Company{}).Where("LOWER(code) = LOWER(?)", code)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("organization service: check login code: %w", err)
	}
	if count > 0 {
		return ErrLoginCodeTaken
	}
	return nil
}
