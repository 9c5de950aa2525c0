package model

import (
	"time"

	"gorm.io/datatypes"
)

// Contact is a per-workspace customer identity keyed by phone number. Created
// lazily on first inbound message when unknown.
type Contact struct {
	ID          string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID string         `json:"workspace_id" gorm:"column:workspace_id;uniqueIndex:idx_contacts_phone"`
	Phone       string         `json:"phone" gorm:"column:phone;uniqueIndex:idx_contacts_phone" validate:"required"`
	Name        string         `json:"name,omitempty" gorm:"column:name"`
	Email       string         `json:"email,omitempty" gorm:"column:email"`
	WaID        string         `json:"wa_id,omitempty" gorm:"column:wa_id"`
	CustomData  datatypes.JSON `json:"custom_data,omitempty" gorm:"type:jsonb;column:custom_data"`
	LastSeenAt  *time.Time     `json:"last_seen_at,omitempty" gorm:"column:last_seen_at"`
	CreatedAt   time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Contact) TableName() string {
	return "contacts"
}

// FieldValue returns a built-in contact field by name, or ok=false when the
// name is not a built-in. Custom data lookup is the caller's fallback.
func (c *Contact) FieldValue(field string) (string, bool) {
	switch field {
	case "name":
		return c.Name, true
	case "phone":
		return c.Phone, true
	case "email":
		return c.Email, true
	case "wa_id":
		return c.WaID, true
	default:
		return "", false
	}
}
