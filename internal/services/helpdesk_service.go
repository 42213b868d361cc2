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

// Completer produces an assistant reply for a helpdesk question given the
// prior conversation. Implementations talk to an external completion API.
type Completer interface {
	Complete(ctx context.Context, apiKey string, history []models.ChatMessage, question string) (string, error)
}

// HelpdeskService runs the AI helpdesk chat for tenant users. One
// conversation per user per company; the company's API key selects the
// upstream account.
type HelpdeskService struct {
	db        *gorm.DB
	completer Completer
	now       func() time.Time
}

// NewHelpdeskService constructs a HelpdeskService.
func NewHelpdeskService(db *gorm.DB, completer Completer, clock func() time.Time) (*HelpdeskService, error) {
	if db == nil {
		return nil, errors.New("helpdesk service: db is required")
	}
	if completer == nil {
		return nil, errors.New("helpdesk service: completer is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &HelpdeskService{db: db, completer: completer, now: clock}, nil
}

// Ask records the user question, obtains an assistant reply, and appends
// both to the conversation.
func (s *HelpdeskService) Ask(ctx context.Context, orgID, companyID, userID, question string) (*models.HelpdeskConversation, error) {
	ctx = ensureContext(ctx)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewBadRequest("Question is required")
	}

	var company models.Company
	if err := s.db.WithContext(ctx).Take(&company, "id = ?", companyID).Error; err != nil {
		return nil, fmt.Errorf("helpdesk service: load company: %w", err)
	}
	if strings.TrimSpace(company.AssistantAPIKey) == "" {
		return nil, apperrors.ErrFeatureDisabled
	}

	conversation, err := s.conversation(ctx, orgID, companyID, userID)
	if err != nil {
		return nil, err
	}

	history := []models.ChatMessage(conversation.Messages)

	reply, err := s.completer.Complete(ctx, company.AssistantAPIKey, history, question)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	now := s.now().Unix()
	conversation.Messages = append(conversation.Messages,
		models.ChatMessage{ID: uuid.NewString(), Timestamp: now, Sender: "user", Text: question},
		models.ChatMessage{ID: uuid.NewString(), Timestamp: now, Sender: "assistant", Text: reply},
	)

	if err := s.db.WithContext(ctx).
		Model(conversation).
		Update("messages", conversation.Messages).Error; err != nil {
		return nil, fmt.Errorf("helpdesk service: save conversation: %w", err)
	}
	return conversation, nil
}

// History returns the conversation for a tenant user, creating an empty one
// on first access.
func (s *HelpdeskService) History(ctx context.Context, orgID, companyID, userID string) (*models.HelpdeskConversation, error) {
	return s.conversation(ensureContext(ctx), orgID, companyID, userID)
}

// Clear wipes a user's conversation.
func (s *HelpdeskService) Clear(ctx context.Context, orgID, companyID, userID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).
		Where("org_id = ? AND company_id = ? AND user_id = ?", orgID, companyID, userID).
		Delete(&models.HelpdeskConversation{}).Error
	if err != nil {
		return fmt.Errorf("helpdesk service: clear conversation: %w", err)
	}
	return nil
}

func (s *HelpdeskService) conversation(ctx context.Context, orgID, companyID, userID string) (*models.HelpdeskConversation, error) {
	var conversation models.HelpdeskConversation
	err := s.db.WithContext(ctx).
		Where(models.HelpdeskConversation{OrgID: orgID, CompanyID: companyID, UserID: userID}).
		FirstOrCreate(&conversation).Error
	if err != nil {
		return nil, fmt.Errorf("helpdesk service: load conversation: %w", err)
	}
	return &conversation, nil
}
