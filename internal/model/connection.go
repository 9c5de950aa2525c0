package model

import (
	"time"
)

// Connection status
const (
	ConnectionStatusActive   = "active"
	ConnectionStatusDisabled = "disabled"
)

// GatewayConnection is a workspace's phone-number identity on the messaging
// gateway. The access token is stored encrypted; the resolver decrypts it.
type GatewayConnection struct {
	ID             string    `json:"id" gorm:"column:id;primaryKey;type:text"`
	WorkspaceID    string    `json:"workspace_id" gorm:"column:workspace_id;index"`
	PhoneNumberID  string    `json:"phone_number_id" gorm:"column:phone_number_id" validate:"required"`
	WabaID         string    `json:"waba_id,omitempty" gorm:"column:waba_id"`
	DisplayPhone   string    `json:"display_phone,omitempty" gorm:"column:display_phone"`
	AccessToken    string    `json:"-" gorm:"column:access_token"`
	Status         string    `json:"status" gorm:"column:status"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (GatewayConnection) TableName() string {
	return "gateway_connections"
}
