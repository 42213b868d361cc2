package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

// DirectoryConfig tunes the tenant directory.
type DirectoryConfig struct {
	// FeatureDefaults is the system-wide feature set; org and company
	// flags overlay it per lookup.
	FeatureDefaults map[string]bool
	Clock           func() time.Time
}

// DirectoryService resolves login codes to companies and enforces the
// licensing, allow-list, and feature gates in front of every tenant login.
type DirectoryService struct {
	db       *gorm.DB
	defaults map[string]bool
	now      func() time.Time
}

// NewDirectoryService constructs the directory over the given database.
func NewDirectoryService(db *gorm.DB, cfg DirectoryConfig) (*DirectoryService, error) {
	if db == nil {
		return nil, errors.New("directory service: db is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &DirectoryService{
		db:       db,
		defaults: cfg.FeatureDefaults,
		now:      clock,
	}, nil
}

// LookupByLoginCode resolves a public login code to its company and owning
// organization. Codes match case-insensitively.
func (s *DirectoryService) LookupByLoginCode(ctx context.Context, code string) (*models.Company, *models.Organization, error) {
	ctx = ensureContext(ctx)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperrors.ErrUnknownLoginCode
	}

	var company models.Company
	err := s.db.WithContext(ctx).
		Where("LOWER(code) = LOWER(?)", code).
		Take(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperrors.ErrUnknownLoginCode
	}
	if err != nil {
		return nil, nil, fmt.Errorf("directory service: lookup login code: %w", err)
	}

	var org models.Organization
	if err := s.db.WithContext(ctx).Take(&org, "id = ?", company.OrgID).Error; err != nil {
		return nil, nil, fmt.Errorf("directory service: load organization: %w", err)
	}

	return &company, &org, nil
}

// EnsureLicense verifies the effective license for a company. A company
// override takes precedence over the organization license. When a paid
// period has lapsed the active flag is flipped off in storage so later
// checks short-circuit without date math.
func (s *DirectoryService) EnsureLicense(ctx context.Context, org *models.Organization, company *models.Company) error {
	ctx = ensureContext(ctx)
	now := s.now().Unix()

	if company != nil && company.LicenseActive != nil {
		if !*company.LicenseActive {
			return apperrors.ErrLicenseInactive
		}
		if company.LicensePeriodEnd != nil && *company.LicensePeriodEnd > 0 && now > *company.LicensePeriodEnd {
			inactive := false
			if err := s.db.WithContext(ctx).Model(company).Update("license_active", false).Error; err != nil {
				return fmt.Errorf("directory service: expire company license: %w", err)
			}
			company.LicenseActive = &inactive
			return apperrors.ErrLicenseInactive
		}
		return nil
	}

	if !org.License.Active {
		return apperrors.ErrLicenseInactive
	}
	if org.License.CurrentPeriodEnd > 0 && now > org.License.CurrentPeriodEnd {
		if err := s.db.WithContext(ctx).Model(org).Update("license_active", false).Error; err != nil {
			return fmt.Errorf("directory service: expire organization license: %w", err)
		}
		org.License.Active = false
		return apperrors.ErrLicenseInactive
	}

	return nil
}

// EnsureUserAllowed enforces the per-company allow-list. An empty list
// admits everyone; matching ignores case and surrounding whitespace.
func (s *DirectoryService) EnsureUserAllowed(company *models.Company, username string) error {
	allowed := []string(company.AllowedUsers)
	if len(allowed) == 0 {
		return nil
	}

	username = strings.ToLower(strings.TrimSpace(username))
	for _, entry := range allowed {
		if strings.ToLower(strings.TrimSpace(entry)) == username {
			return nil
		}
	}
	return apperrors.ErrUserNotAllowed
}

// ResolveFeature computes the effective flag for one feature: system
// defaults, overlaid by the organization, overlaid by the company. The
// result is never cached in a session.
func (s *DirectoryService) ResolveFeature(org *models.Organization, company *models.Company, feature string) bool {
	enabled := s.defaults[feature]

	if org != nil {
		if value, ok := org.Features.Data()[feature]; ok {
			enabled = value
		}
	}
	if company != nil {
		if value, ok := company.Features.Data()[feature]; ok {
			enabled = value
		}
	}
	return enabled
}

// ResolveFeatures returns the full effective feature map for a tenant.
func (s *DirectoryService) ResolveFeatures(org *models.Organization, company *models.Company) map[string]bool {
	merged := make(map[string]bool, len(s.defaults))
	for k, v := range s.defaults {
		merged[k] = v
	}
	if org != nil {
		for k, v := range org.Features.Data() {
			merged[k] = v
		}
	}
	if company != nil {
		for k, v := range company.Features.Data() {
			merged[k] = v
		}
	}
	return merged
}

// EnsureFeature rejects requests whose effective feature flag is off. The
// license is re-verified on every call, so a session issued while licensed
// stops satisfying gated requests the moment the paid period lapses.
func (s *DirectoryService) EnsureFeature(ctx context.Context, orgID, companyID, feature string) error {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).Take(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewBadRequest("Unknown organization")
	}
	if err != nil {
		return fmt.Errorf("directory service: load organization: %w", err)
	}

	var company *models.Company
	if companyID != "" {
		var loaded models.Company
		err := s.db.WithContext(ctx).Take(&loaded, "id = ?", companyID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewBadRequest("Unknown company")
		}
		if err != nil {
			return fmt.Errorf("directory service: load company: %w", err)
		}
		company = &loaded
	}

	if err := s.EnsureLicense(ctx, &org, company); err != nil {
		return err
	}

	if !s.ResolveFeature(&org, company, feature) {
		return apperrors.ErrFeatureDisabled
	}
	return nil
}

// GetCompany loads a company by ID.
func (s *DirectoryService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	ctx = ensureContext(ctx)

	var company models.Company
	err := s.db.WithContext(ctx).Take(&company, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: get company: %w", err)
	}
	return &company, nil
}

// GetOrganization loads an organization with its companies.
func (s *DirectoryService) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).Preload("Companies").Take(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: get organization: %w", err)
	}
	return &org, nil
}
