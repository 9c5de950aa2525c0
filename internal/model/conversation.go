package model

import (
	"time"
)

// Conversation ticket status
const (
	TicketStatusOpen     = "open"
	TicketStatusPending  = "pending"
	TicketStatusResolved = "resolved"
)

// Conversation priority
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Conversation is the per-workspace, per-contact service state. One row per
// (workspace, contact), created lazily on first inbound message.
type Conversation struct {
	ID                    string     `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID           string     `json:"workspace_id" gorm:"column:workspace_id;uniqueIndex:idx_conversations_contact"`
	ContactID             string     `json:"contact_id" gorm:"column:contact_id;uniqueIndex:idx_conversations_contact" validate:"required"`
	TicketStatus          string     `json:"ticket_status" gorm:"column:ticket_status;index"`
	Priority              string     `json:"priority,omitempty" gorm:"column:priority"`
	UnreadCount           int        `json:"unread_count" gorm:"column:unread_count"`
	LastMessageAt         *time.Time `json:"last_message_at,omitempty" gorm:"column:last_message_at"`
	LastCustomerMessageAt *time.Time `json:"last_customer_message_at,omitempty" gorm:"column:last_customer_message_at"`
	FirstResponseDueAt    *time.Time `json:"first_response_due_at,omitempty" gorm:"column:first_response_due_at"`
	ResolutionDueAt       *time.Time `json:"resolution_due_at,omitempty" gorm:"column:resolution_due_at"`
	CreatedAt             time.Time  `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Conversation) TableName() string {
	return "conversations"
}
