package model

import (
	"time"

	"gorm.io/datatypes"
)

// Message direction
const (
	MessageDirectionIn  = "in"
	MessageDirectionOut = "out"
)

// Message status as reported by the gateway, plus the pre-send pending state.
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Message is the canonical message row, inbound or outbound. WaMessageID is
// the gateway-assigned id and is unique when non-null; it is the dedup key for
// inbound webhook processing and for status-callback correlation.
type Message struct {
	ID               string         `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID      string         `json:"workspace_id" gorm:"column:workspace_id;index"`
	ConversationID   string         `json:"conversation_id,omitempty" gorm:"column:conversation_id;index"`
	ContactID        string         `json:"contact_id,omitempty" gorm:"column:contact_id"`
	WaMessageID      *string        `json:"wa_message_id,omitempty" gorm:"column:wa_message_id;uniqueIndex"`
	Direction        string         `json:"direction" gorm:"column:direction"`
	MessageType      string         `json:"message_type,omitempty" gorm:"column:message_type"`
	Body             string         `json:"body,omitempty" gorm:"column:body"`
	MediaURL         string         `json:"media_url,omitempty" gorm:"column:media_url"`
	MediaID          string         `json:"media_id,omitempty" gorm:"column:media_id"`
	MediaMimeType    string         `json:"media_mime_type,omitempty" gorm:"column:media_mime_type"`
	MediaChecksum    string         `json:"media_checksum,omitempty" gorm:"column:media_checksum"`
	Status           string         `json:"status,omitempty" gorm:"column:status"`
	ErrorReason      string         `json:"error_reason,omitempty" gorm:"column:error_reason"`
	MessageTimestamp time.Time      `json:"message_timestamp" gorm:"column:message_timestamp;index"`
	SentAt           *time.Time     `json:"sent_at,omitempty" gorm:"column:sent_at"`
	Raw              datatypes.JSON `json:"raw,omitempty" gorm:"type:jsonb;column:raw"`
	CreatedAt        time.Time      `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// NormalizeGatewayStatus maps a gateway status string onto the canonical set.
// Returns empty string for unrecognized values, which callers ignore.
func NormalizeGatewayStatus(s string) string {
	switch s {
	case "sent", "delivered", "read", "failed":
		return s
	default:
		return ""
	}
}
