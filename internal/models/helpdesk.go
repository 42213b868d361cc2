package models

import "gorm.io/datatypes"

// ChatMessage is a single helpdesk exchange entry. The sender is either
// "user" or "assistant"; vendor-specific wording never appears here.
type ChatMessage struct {
	ID        string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// HelpdeskConversation groups the chat history between one tenant user and
// the AI assistant.
type HelpdeskConversation struct {
	BaseModel

	OrgID     string `gorm:"type:uuid;not null;index" json:"org_id"`
	CompanyID string `gorm:"type:uuid;not null" json:"company_id"`
	UserID    string `gorm:"not null;index" json:"user_id"`

	Messages datatypes.JSONSlice[ChatMessage] `json:"messages"`
}
