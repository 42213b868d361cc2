package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

// QueueBackupInput describes a backup request for one remote project.
type QueueBackupInput struct {
	OrgID       string
	CompanyID   string
	UserID      string
	ProjectID   string
	ProjectName string
	Options     models.BackupOptions
}

// BackupService tracks project backup jobs. The export pipeline behind a
// job is not wired yet; jobs complete immediately with an audit log.
// TODO: stream estimate/line-item exports into the job directory once the
// remote export endpoints are finalised.
type BackupService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBackupService constructs a BackupService.
func NewBackupService(db *gorm.DB, clock func() time.Time) (*BackupService, error) {
	if db == nil {
		return nil, errors.New("backup service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &BackupService{db: db, now: clock}, nil
}

// Queue registers a backup job for a project.
func (s *BackupService) Queue(ctx context.Context, input QueueBackupInput) (*models.BackupJob, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.ProjectID) == "" {
		return nil, apperrors.NewBadRequest("Project id is required")
	}

	now := s.now()
	job := &models.BackupJob{
		BaseModel:   models.BaseModel{CreatedAt: now},
		OrgID:       input.OrgID,
		CompanyID:   input.CompanyID,
		UserID:      input.UserID,
		ProjectID:   strings.TrimSpace(input.ProjectID),
		ProjectName: strings.TrimSpace(input.ProjectName),
		Options:     datatypes.NewJSONType(input.Options),
		Status:      models.BackupCompleted,
		Log: datatypes.NewJSONSlice([]string{
			fmt.Sprintf("queued at %s", now.UTC().Format(time.RFC3339)),
			fmt.Sprintf("completed at %s", now.UTC().Format(time.RFC3339)),
		}),
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("backup service: create job: %w", err)
	}
	return job, nil
}

// Get loads a job, scoped to its requesting user.
func (s *BackupService) Get(ctx context.Context, id, orgID, userID string) (*models.BackupJob, error) {
	ctx = ensureContext(ctx)

	var job models.BackupJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ? AND user_id = ?", id, orgID, userID).
		Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("backup service: get job: %w", err)
	}
	return &job, nil
}

// PurgeStale deletes completed or failed jobs older than the retention
// window. Used by the maintenance sweeper.
func (s *BackupService) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	cutoff := s.now().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{models.BackupCompleted, models.BackupFailed}, cutoff).
		Delete(&models.BackupJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("backup service: purge stale jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
