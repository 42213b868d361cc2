package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/models"
	apperrors "github.com/sitebridgehq/sitebridge/pkg/errors"
)

// CreateTicketInput captures a new support request.
type CreateTicketInput struct {
	OrgID     string
	CompanyID *string
	UserID    *string
	Subject   string
	Priority  string
	Text      string
	Sender    string
}

// TicketService manages support tickets raised by tenant users and answered
// by platform admins.
type TicketService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTicketService constructs a TicketService.
func NewTicketService(db *gorm.DB, clock func() time.Time) (*TicketService, error) {
	if db == nil {
		return nil, errors.New("ticket service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{db: db, now: clock}, nil
}

// Create opens a ticket with its first message.
func (s *TicketService) Create(ctx context.Context, input CreateTicketInput) (*models.Ticket, error) {
	ctx = ensureContext(ctx)

	subject := strings.TrimSpace(input.Subject)
	text := strings.TrimSpace(input.Text)
	if input.OrgID == "" || subject == "" || text == "" {
		return nil, apperrors.NewBadRequest("Subject and message are required")
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = models.PriorityNormal
	}
	switch priority {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
	default:
		return nil, apperrors.NewBadRequest("Unknown ticket priority")
	}

	sender := input.Sender
	if sender == "" {
		sender = "user"
	}

	ticket := &models.Ticket{
		OrgID:     input.OrgID,
		CompanyID: input.CompanyID,
		UserID:    input.UserID,
		Subject:   subject,
		Priority:  priority,
		Status:    models.StatusOpen,
		Messages: []models.TicketMessage{{
			ID:        uuid.NewString(),
			Timestamp: s.now().Unix(),
			Sender:    sender,
			Text:      text,
		}},
	}

	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("ticket service: create ticket: %w", err)
	}
	return ticket, nil
}

// TicketScope restricts lookups to a tenant user's own tickets. The zero
// value is the unrestricted admin scope.
type TicketScope struct {
	OrgID  string
	UserID string
}

// ListForUser returns a tenant user's own tickets, newest first.
func (s *TicketService) ListForUser(ctx context.Context, orgID, userID string) ([]models.Ticket, error) {
	ctx = ensureContext(ctx)

	var tickets []models.Ticket
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Order("created_at DESC").
		Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("ticket service: list tickets: %w", err)
	}
	return tickets, nil
}

// ListAll returns tickets across all tenants, optionally filtered by status.
func (s *TicketService) ListAll(ctx context.Context, status string) ([]models.Ticket, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("created_at DESC")
	if status = strings.TrimSpace(status); status != "" {
		query = query.Where("status = ?", status)
	}

	var tickets []models.Ticket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("ticket service: list tickets: %w", err)
	}
	return tickets, nil
}

// Get loads a ticket within the given scope. Tickets outside the scope come
// back as not found, so tenants can never read another org's tickets or an
// org-mate's conversation.
func (s *TicketService) Get(ctx context.Context, id string, scope TicketScope) (*models.Ticket, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Where("id = ?", id)
	if scope.OrgID != "" {
		query = query.Where("org_id = ?", scope.OrgID)
	}
	if scope.UserID != "" {
		query = query.Where("user_id = ?", scope.UserID)
	}

	var ticket models.Ticket
	err := query.Take(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket service: get ticket: %w", err)
	}
	return &ticket, nil
}

// AddMessage appends to a ticket conversation. Replies from admins move an
// open ticket to in_progress.
func (s *TicketService) AddMessage(ctx context.Context, id string, scope TicketScope, sender, text string) (*models.Ticket, error) {
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewBadRequest("Message text is required")
	}

	ticket, err := s.Get(ctx, id, scope)
	if err != nil {
		return nil, err
	}

	ticket.Messages = append(ticket.Messages, models.TicketMessage{
		ID:        uuid.NewString(),
		Timestamp: s.now().Unix(),
		Sender:    sender,
		Text:      text,
	})

	updates := map[string]any{"messages": ticket.Messages}
	if sender == "admin" && ticket.Status == models.StatusOpen {
		updates["status"] = models.StatusInProgress
		ticket.Status = models.StatusInProgress
	}

	if err := s.db.WithContext(ctx).Model(ticket).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ticket service: add message: %w", err)
	}
	return ticket, nil
}

// AdminUpdate transitions a ticket's status and/or priority. Empty fields
// are left untouched; at least one must be set.
func (s *TicketService) AdminUpdate(ctx context.Context, id, status, priority string) (*models.Ticket, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if status != "" {
		switch status {
		case models.StatusOpen, models.StatusInProgress, models.StatusDone:
		default:
			return nil, apperrors.NewBadRequest("Unknown ticket status")
		}
		updates["status"] = status
	}
	if priority != "" {
		switch priority {
		case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		default:
			return nil, apperrors.NewBadRequest("Unknown ticket priority")
		}
		updates["priority"] = priority
	}
	if len(updates) == 0 {
		return nil, apperrors.NewBadRequest("Status or priority is required")
	}

	ticket, err := s.Get(ctx, id, TicketScope{})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(ticket).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ticket service: update ticket: %w", err)
	}
	if status != "" {
		ticket.Status = status
	}
	if priority != "" {
		ticket.Priority = priority
	}
	return ticket, nil
}
