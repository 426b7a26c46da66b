package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusDiscarded = "discarded"
)

// WebhookSubscription is an outbound endpoint registered by a space admin.
type WebhookSubscription struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	SpaceID   string         `gorm:"size:36;index;not null" json:"space_id"`
	URL       string         `gorm:"size:500;not null" json:"url"`
	Secret    string         `gorm:"size:100" json:"-"`
	Events    string         `gorm:"size:500;default:*" json:"events"` // comma separated, * for all
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedBy string         `gorm:"size:36" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (WebhookSubscription) TableName() string { return "webhook_subscriptions" }

func (w *WebhookSubscription) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WebhookDelivery is one attempt record for an event sent to a subscription.
type WebhookDelivery struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SubscriptionID string         `gorm:"size:36;index;not null" json:"subscription_id"`
	EventID        string         `gorm:"size:36;index" json:"event_id"`
	EventType      string         `gorm:"size:100;index" json:"event_type"`
	Payload        datatypes.JSON `json:"payload"`
	Status         string         `gorm:"size:20;index;default:pending" json:"status"`
	Attempts       int            `gorm:"default:0" json:"attempts"`
	ResponseCode   int            `json:"response_code"`
	Error          string         `gorm:"type:text" json:"error"`
	DeliveredAt    *time.Time     `json:"delivered_at"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (WebhookDelivery) TableName() string { return "webhook_deliveries" }

func (d *WebhookDelivery) BeforeCreate(tx *gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
