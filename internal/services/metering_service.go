package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
)

// MeteringService accumulates per-organization usage counters. Counting is
// best effort and never sits on the auth path.
type MeteringService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMeteringService constructs a MeteringService.
func NewMeteringService(db *gorm.DB, clock func() time.Time) (*MeteringService, error) {
	if db == nil {
		return nil, errors.New("metering service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &MeteringService{db: db, now: clock}, nil
}

// RecordRequest counts one authenticated request against an organization.
// The feature key is optional.
func (s *MeteringService) RecordRequest(ctx context.Context, orgID, route, feature string) error {
	return s.update(ctx, orgID, func(counter *models.UsageCounter) {
		counter.TotalRequests++

		perRoute := counter.PerRoute.Data()
		if perRoute == nil {
			perRoute = map[string]int64{}
		}
		perRoute[route]++
		counter.PerRoute = datatypes.NewJSONType(perRoute)

		if feature != "" {
			perFeature := counter.PerFeature.Data()
			if perFeature == nil {
				perFeature = map[string]int64{}
			}
			perFeature[feature]++
			counter.PerFeature = datatypes.NewJSONType(perFeature)
		}
	})
}

// RecordRemoteCall counts one delegated remote call made on behalf of an
// organization.
func (s *MeteringService) RecordRemoteCall(ctx context.Context, orgID, feature string) error {
	return s.update(ctx, orgID, func(counter *models.UsageCounter) {
		counter.TotalRemoteCalls++

		byFeature := counter.RemoteByFeature.Data()
		if byFeature == nil {
			byFeature = map[string]int64{}
		}
		byFeature[feature]++
		counter.RemoteByFeature = datatypes.NewJSONType(byFeature)
	})
}

// Snapshot returns the counters for one organization.
func (s *MeteringService) Snapshot(ctx context.Context, orgID string) (*models.UsageCounter, error) {
	ctx = ensureContext(ctx)

	var counter models.UsageCounter
	err := s.db.WithContext(ctx).
		Where(models.UsageCounter{OrgID: orgID}).
		FirstOrCreate(&counter).Error
	if err != nil {
		return nil, fmt.Errorf("metering service: load counter: %w", err)
	}
	return &counter, nil
}

// Overview returns counters for every organization for the admin metrics
// view, heaviest consumers first, with the organization name attached.
func (s *MeteringService) Overview(ctx context.Context) ([]models.UsageCounter, error) {
	ctx = ensureContext(ctx)

	var counters []models.UsageCounter
	if err := s.db.WithContext(ctx).Order("total_requests DESC").Find(&counters).Error; err != nil {
		return nil, fmt.Errorf("metering service: list counters: %w", err)
	}
	if len(counters) == 0 {
		return counters, nil
	}

	ids := make([]string, 0, len(counters))
	for _, counter := range counters {
		ids = append(ids, counter.OrgID)
	}
	var orgs []models.Organization
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("metering service: load organization names: %w", err)
	}
	names := make(map[string]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	for i := range counters {
		counters[i].OrgName = names[counters[i].OrgID]
	}
	return counters, nil
}

func (s *MeteringService) update(ctx context.Context, orgID string, mutate func(*models.UsageCounter)) error {
	ctx = ensureContext(ctx)

	if orgID == "" {
		return errors.New("metering service: org id is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counter models.UsageCounter
		if err := tx.Where(models.UsageCounter{OrgID: orgID}).FirstOrCreate(&counter).Error; err != nil {
			return fmt.Errorf("metering service: load counter: %w", err)
		}

		mutate(&counter)
		counter.UpdatedAt = s.now()

		if err := tx.Save(&counter).Error; err != nil {
			return fmt.Errorf("metering service: save counter: %w", err)
		}
		return nil
	})
}
