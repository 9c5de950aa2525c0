package model

import (
	"time"

	"gorm.io/datatypes"
)

// Outbox row lifecycle. Terminal rows keep their status forever and have
// next_attempt_at parked at the far-future sentinel.
const (
	OutboxStatusQueued = "queued"
	OutboxStatusSent   = "sent"
	OutboxStatusFailed = "failed"
)

// Outbox payload kinds
const (
	OutboxKindText     = "text"
	OutboxKindTemplate = "template"
)

// OutboxMessage is one pending single-message delivery. Rows are only ever
// mutated by the outbox worker after creation and are kept for audit.
type OutboxMessage struct {
	ID             string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID    string         `json:"workspace_id" gorm:"column:workspace_id;index"`
	ThreadID       string         `json:"thread_id,omitempty" gorm:"column:thread_id;index"`
	ConnectionID   string         `json:"connection_id,omitempty" gorm:"column:connection_id"`
	ToPhone        string         `json:"to_phone" gorm:"column:to_phone"`
	MessageType    string         `json:"message_type" gorm:"column:message_type"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;column:payload"`
	Status         string         `json:"status" gorm:"column:status;index:idx_outbox_claim"`
	Attempts       int            `json:"attempts" gorm:"column:attempts"`
	LastError      string         `json:"last_error,omitempty" gorm:"column:last_error"`
	IdempotencyKey string         `json:"idempotency_key" gorm:"column:idempotency_key;uniqueIndex"`
	NextAttemptAt  time.Time      `json:"next_attempt_at" gorm:"column:next_attempt_at;index:idx_outbox_claim"`
	LockedAt       *time.Time     `json:"locked_at,omitempty" gorm:"column:locked_at"`
	LockedBy       string         `json:"locked_by,omitempty" gorm:"column:locked_by"`
	CreatedAt      time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// OutboxPayload is the typed form of the jsonb payload column. Kind selects
// which of the remaining fields are meaningful.
type OutboxPayload struct {
	Kind             string   `json:"kind"`
	MessageID        string   `json:"message_id"` // internal Message row this delivery belongs to
	Text             string   `json:"text,omitempty"`
	TemplateName     string   `json:"template_name,omitempty"`
	TemplateLanguage string   `json:"template_language,omitempty"`
	TemplateParams   []string `json:"template_params,omitempty"`
}

// IsTerminal reports whether the row reached a final state.
func (o *OutboxMessage) IsTerminal() bool {
	return o.Status == OutboxStatusSent || o.Status == OutboxStatusFailed
}
