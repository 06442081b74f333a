package eventbus

import "time"

// Event types published during one invocation.
const (
	TypeDeviceRegistered = "device.registered"
	TypePushDelivered    = "push.delivered"
	TypePushFailed       = "push.failed"
	TypeDispatchFinished = "dispatch.finished"
)

// Payload keys shared by publishers and listeners.
const (
	KeyEventID     = "event_id"
	KeyUser        = "user"
	KeyDeviceToken = "device_token"
	KeyHTTPStatus  = "http_status"
	KeyReason      = "reason"
	KeyURI         = "uri"
)

// Event represents an outcome published to the bus.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)
