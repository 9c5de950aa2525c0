package model

import (
	"time"

	"gorm.io/datatypes"
)

// Audit event kinds
const (
	AuditKindStatusUpdate   = "status_update"
	AuditKindInboundMessage = "inbound_message"
)

// AuditEvent is an append-only record of a processed webhook entry, keeping
// the raw gateway payload for later inspection. Never updated or deleted.
type AuditEvent struct {
	ID          string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID string         `json:"workspace_id,omitempty" gorm:"column:workspace_id;index"`
	Kind        string         `json:"kind" gorm:"column:kind"`
	WaMessageID string         `json:"wa_message_id,omitempty" gorm:"column:wa_message_id;index"`
	Payload     datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb;column:payload"`
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditEvent) TableName() string {
	return "audit_events"
}

// WorkerHeartbeat records the outcome of the latest worker invocation. One row
// per worker name, upserted after every batch; writes are best effort.
type WorkerHeartbeat struct {
	WorkerName string         `json:"worker_name" gorm:"column:worker_name;primaryKey;type:text"`
	LastRunAt  time.Time      `json:"last_run_at" gorm:"column:last_run_at"`
	Counts     datatypes.JSON `json:"counts,omitempty" gorm:"type:jsonb;column:counts"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (WorkerHeartbeat) TableName() string {
	return "worker_heartbeats"
}
