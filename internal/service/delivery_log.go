package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

const deliveryLogTimeout = 5 * time.Second

// DeliveryLogListener returns an eventbus listener that records every push
// attempt in store. Write failures are logged and otherwise ignored.
func DeliveryLogListener(store storage.DeliveryStore, logger *slog.Logger) eventbus.Listener {
	return func(e eventbus.Event) {
		var status string
		switch e.Type {
		case eventbus.TypePushDelivered:
			status = storage.DeliveryStatusDelivered
		case eventbus.TypePushFailed:
			status = storage.DeliveryStatusFailed
		default:
			return
		}

		httpStatus, _ := strconv.Atoi(e.Payload[eventbus.KeyHTTPStatus])
		entry := storage.DeliveryLogEntry{
			EventID:     e.Payload[eventbus.KeyEventID],
			User:        e.Payload[eventbus.KeyUser],
			DeviceToken: e.Payload[eventbus.KeyDeviceToken],
			Status:      status,
			HTTPStatus:  httpStatus,
			Reason:      e.Payload[eventbus.KeyReason],
			CreatedAt:   e.Timestamp.UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), deliveryLogTimeout)
		defer cancel()
		if err := store.LogDelivery(ctx, entry); err != nil {
			logger.Warn("failed to record delivery", "device_token", entry.DeviceToken, "error", err)
		}
	}
}
