package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Delivery channels
const (
	ChannelInApp     = "IN_APP"
	ChannelWebSocket = "WEBSOCKET"
	ChannelEmail     = "EMAIL"
	ChannelSMS       = "SMS"
)

// Delivery statuses
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusSkipped   = "SKIPPED"
	StatusFailed    = "FAILED"
)

// Notification is the in-app record of a message sent to a user
type Notification struct {
	ID        uuid.UUID         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	Kind      string            `json:"kind" gorm:"not null;index"`
	Title     string            `json:"title" gorm:"not null"`
	Body      string            `json:"body"`
	Payload   datatypes.JSONMap `json:"payload" gorm:"type:jsonb"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName overrides the gorm default
func (Notification) TableName() string {
	return "notifications"
}

// DeliveryLog records one channel attempt for a notification
type DeliveryLog struct {
	ID             uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	NotificationID uuid.UUID `json:"notification_id" gorm:"type:uuid;not null;index"`
	Channel        string    `json:"channel" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null"`
	ProviderID     string    `json:"provider_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp" gorm:"autoCreateTime"`
}

// TableName overrides the gorm default
func (DeliveryLog) TableName() string {
	return "notification_delivery_logs"
}
