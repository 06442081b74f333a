package storage

import (
	"context"
	"time"
)

// Delivery statuses recorded in the delivery log.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// DeliveryLogEntry records a single push attempt to one device.
type DeliveryLogEntry struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"event_id"`
	User        string    `json:"user"`
	DeviceToken string    `json:"device_token"`
	Status      string    `json:"status"`
	HTTPStatus  int       `json:"http_status"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeliveryStore defines the interface for persisting push delivery logs.
type DeliveryStore interface {
	// LogDelivery records a push attempt.
	LogDelivery(ctx context.Context, entry DeliveryLogEntry) error
	// ListDeliveries returns the most recent entries, up to limit.
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryLogEntry, error)
}
