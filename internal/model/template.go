package model

import (
	"time"

	"gorm.io/datatypes"
)

// Template approval status mirrors the gateway's template registry.
const (
	TemplateStatusApproved = "approved"
	TemplateStatusPending  = "pending"
	TemplateStatusRejected = "rejected"
)

// Template is a workspace-scoped message template registered with the gateway.
// Bulk send jobs reference templates by id; name and language are what the
// gateway payload carries.
type Template struct {
	ID          string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID string         `json:"workspace_id" gorm:"column:workspace_id;index"`
	Name        string         `json:"name" gorm:"column:name" validate:"required"`
	Language    string         `json:"language" gorm:"column:language" validate:"required"`
	Body        string         `json:"body,omitempty" gorm:"column:body"`
	ParamCount  int            `json:"param_count" gorm:"column:param_count"`
	Status      string         `json:"status,omitempty" gorm:"column:status"`
	Mappings    datatypes.JSON `json:"mappings,omitempty" gorm:"type:jsonb;column:mappings"` // default ParamMapping list
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Template) TableName() string {
	return "wa_templates"
}
