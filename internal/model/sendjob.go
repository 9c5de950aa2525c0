package model

import (
	"time"

	"gorm.io/datatypes"
)

// Send job lifecycle. Transitions only move forward; completed/failed/cancelled
// are terminal.
const (
	SendJobStatusPending    = "pending"
	SendJobStatusProcessing = "processing"
	SendJobStatusCompleted  = "completed"
	SendJobStatusFailed     = "failed"
	SendJobStatusCancelled  = "cancelled"
)

// Send job item lifecycle. queued -> sending -> sent|failed, or skipped when
// the job is cancelled before the item is reached.
const (
	SendJobItemStatusQueued  = "queued"
	SendJobItemStatusSending = "sending"
	SendJobItemStatusSent    = "sent"
	SendJobItemStatusFailed  = "failed"
	SendJobItemStatusSkipped = "skipped"
)

// Item failure reason codes for job-level infrastructure failures.
const (
	FailReasonConnectionNotFound = "connection_not_found"
	FailReasonTokenNotFound      = "token_not_found"
	FailReasonTemplateNotFound   = "template_not_found"
)

// SendJob is one bulk template campaign.
type SendJob struct {
	ID                 string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID        string         `json:"workspace_id" gorm:"column:workspace_id;index"`
	ConnectionID       string         `json:"connection_id,omitempty" gorm:"column:connection_id"`
	TemplateID         string         `json:"template_id" gorm:"column:template_id"`
	Name               string         `json:"name" gorm:"column:name"`
	Status             string         `json:"status" gorm:"column:status;index"`
	TotalCount         int            `json:"total_count" gorm:"column:total_count"`
	QueuedCount        int            `json:"queued_count" gorm:"column:queued_count"`
	SentCount          int            `json:"sent_count" gorm:"column:sent_count"`
	FailedCount        int            `json:"failed_count" gorm:"column:failed_count"`
	GlobalValues       datatypes.JSON `json:"global_values,omitempty" gorm:"type:jsonb;column:global_values"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute" gorm:"column:rate_limit_per_minute"`
	StartedAt          *time.Time     `json:"started_at,omitempty" gorm:"column:started_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty" gorm:"column:completed_at"`
	CreatedBy          string         `json:"created_by,omitempty" gorm:"column:created_by"`
	CreatedAt          time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SendJob) TableName() string {
	return "send_jobs"
}

// IsTerminal reports whether the job reached a final state.
func (j *SendJob) IsTerminal() bool {
	return j.Status == SendJobStatusCompleted || j.Status == SendJobStatusFailed || j.Status == SendJobStatusCancelled
}

// SendJobItem is one recipient within a job. Params are resolved at job
// creation time and stored verbatim so send attempts are replayable without
// touching contact data again.
type SendJobItem struct {
	ID           string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	JobID        string         `json:"job_id" gorm:"column:job_id;index:idx_job_items_status"`
	WorkspaceID  string         `json:"workspace_id" gorm:"column:workspace_id"`
	ContactID    string         `json:"contact_id,omitempty" gorm:"column:contact_id"`
	ToPhone      string         `json:"to_phone" gorm:"column:to_phone"`
	Params       datatypes.JSON `json:"params,omitempty" gorm:"type:jsonb;column:params"`
	Status       string         `json:"status" gorm:"column:status;index:idx_job_items_status"`
	WaMessageID  string         `json:"wa_message_id,omitempty" gorm:"column:wa_message_id"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"column:error_message"`
	SentAt       *time.Time     `json:"sent_at,omitempty" gorm:"column:sent_at"`
	CreatedAt    time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SendJobItem) TableName() string {
	return "send_job_items"
}

// SendLog is an append-only audit row, one per delivery attempt. The recipient
// phone is stored hashed, never raw. Rows double as the rolling rate-limit
// accounting source.
type SendLog struct {
	ID            string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	JobID         string         `json:"job_id" gorm:"column:job_id;index:idx_send_logs_rate"`
	ItemID        string         `json:"item_id,omitempty" gorm:"column:item_id"`
	WorkspaceID   string         `json:"workspace_id" gorm:"column:workspace_id"`
	RecipientHash string         `json:"recipient_hash" gorm:"column:recipient_hash"`
	TemplateID    string         `json:"template_id,omitempty" gorm:"column:template_id"`
	TemplateName  string         `json:"template_name,omitempty" gorm:"column:template_name"`
	Success       bool           `json:"success" gorm:"column:success;index:idx_send_logs_rate"`
	HTTPStatus    int            `json:"http_status,omitempty" gorm:"column:http_status"`
	RawResponse   datatypes.JSON `json:"raw_response,omitempty" gorm:"type:jsonb;column:raw_response"`
	CreatedAt     time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime;index:idx_send_logs_rate"`
}

// TableName specifies the table name for GORM
func (SendLog) TableName() string {
	return "send_logs"
}

// Parameter mapping kinds for template placeholder resolution.
const (
	ParamMappingManual       = "manual"
	ParamMappingContactField = "contact_field"
	ParamMappingExpression   = "expression"
)

// ParamMapping describes how one template placeholder index is resolved at job
// creation time.
type ParamMapping struct {
	Index        int    `json:"index" validate:"required,gte=1"`
	Kind         string `json:"kind" validate:"required,oneof=manual contact_field expression"`
	Field        string `json:"field,omitempty"`      // contact_field: contact field name
	Expression   string `json:"expression,omitempty"` // expression: mustache-style template
	DefaultValue string `json:"default_value,omitempty"`
}
