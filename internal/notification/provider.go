// Package notification delivers push notifications to the Apple Push
// Notification service over a mutually authenticated HTTP/2 connection.
package notification

import (
	"context"
	"net/http"
	"time"

	"github.com/sideshow/apns2"
)

// PriorityImmediate asks the gateway to deliver the alert right away.
const PriorityImmediate = apns2.PriorityHigh

// Notification is one push request for one device. It is built per
// delivery attempt and never persisted.
type Notification struct {
	DeviceToken string
	AccountID   string
	Topic       string
	// Expiration is when the gateway stops trying to deliver. It is sent
	// as Unix seconds.
	Expiration time.Time
	Priority   int
}

// Payload is the JSON body sent to the gateway.
type Payload struct {
	APS APS `json:"aps"`
}

// APS is the Apple-reserved payload dictionary.
type APS struct {
	AccountID string `json:"account-id"`
}

// Payload returns the request body for n.
func (n Notification) Payload() Payload {
	return Payload{APS: APS{AccountID: n.AccountID}}
}

// Response is the gateway's answer to one push request.
type Response struct {
	StatusCode int
	// Reason is the gateway error code (e.g. "BadDeviceToken"), empty on success.
	Reason string
	// ID is the apns-id header echoed back by the gateway.
	ID string
}

// Delivered reports whether the gateway accepted the notification.
func (r *Response) Delivered() bool {
	return r.StatusCode == http.StatusOK
}

// Sender is the interface for push delivery backends.
type Sender interface {
	// Name returns the sender identifier (e.g. "apns").
	Name() string
	// Send issues a single push request. A non-nil error means no response
	// was received; gateway rejections are reported through Response.
	Send(ctx context.Context, n Notification) (*Response, error)
}
