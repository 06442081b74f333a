package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/notification"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
)

// expiryWindow is how long the gateway keeps retrying an undelivered push.
const expiryWindow = 24 * time.Hour

// ErrGatewayUnreachable is returned when no push attempt of an event got a
// response from the gateway.
var ErrGatewayUnreachable = errors.New("push gateway unreachable")

// SenderFactory builds the sender for one dispatch. It is called once per
// event, after the topic check, so every device shares one connection.
type SenderFactory func(cfg notification.APNsConfig) (notification.Sender, error)

// APNsSenderFactory is the production SenderFactory.
func APNsSenderFactory(cfg notification.APNsConfig) (notification.Sender, error) {
	return notification.NewAPNsSenderFromConfig(cfg)
}

// DispatchService handles new-message events.
type DispatchService interface {
	// Dispatch pushes one notification to every device registered for the
	// event's user. Per-device rejections are logged and do not fail the
	// event.
	Dispatch(ctx context.Context, ev Event) error
}

type dispatchServiceImpl struct {
	registry  *registry.Registry
	cfg       notification.APNsConfig
	newSender SenderFactory
	bus       eventbus.EventBus
	logger    *slog.Logger
	now       func() time.Time
}

// DispatchOption customizes a DispatchService.
type DispatchOption func(*dispatchServiceImpl)

// WithClock overrides the time source used for apns-expiration.
func WithClock(now func() time.Time) DispatchOption {
	return func(s *dispatchServiceImpl) { s.now = now }
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	reg *registry.Registry,
	cfg notification.APNsConfig,
	newSender SenderFactory,
	bus eventbus.EventBus,
	logger *slog.Logger,
	opts ...DispatchOption,
) DispatchService {
	s := &dispatchServiceImpl{
		registry:  reg,
		cfg:       cfg,
		newSender: newSender,
		bus:       bus,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attemptResult tallies the outcomes of one dispatch.
type attemptResult struct {
	delivered   int
	rejected    int
	unreachable int
}

func (s *dispatchServiceImpl) Dispatch(ctx context.Context, ev Event) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("checking push configuration: %w", err)
	}
	sender, err := s.newSender(s.cfg)
	if err != nil {
		return fmt.Errorf("creating push sender: %w", err)
	}

	user, ok := ev.String("user")
	if !ok {
		return &PushError{Field: "user"}
	}
	uri, _ := ev.String("uri")

	devices, found, err := s.registry.Devices(ctx, user)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Debug("no devices registered", "user", user)
		return nil
	}

	expiry := s.now().Add(expiryWindow).Truncate(time.Second)

	var res attemptResult
	for _, token := range devices {
		accountID, err := s.registry.AccountID(ctx, token)
		if errors.Is(err, registry.ErrAccountNotFound) {
			return &InconsistencyError{DeviceToken: token}
		}
		if err != nil {
			return err
		}

		s.deliver(ctx, ev.ID, user, sender, notification.Notification{
			DeviceToken: token,
			AccountID:   accountID,
			Topic:       s.cfg.Topic,
			Expiration:  expiry,
			Priority:    notification.PriorityImmediate,
		}, &res)

		// A cancelled invocation stops here; the remaining devices are not
		// attempted and the event is not reported as handled.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pushing message %s: %w", uri, err)
		}
	}

	s.bus.Publish(eventbus.TypeDispatchFinished, map[string]string{
		eventbus.KeyEventID: ev.ID,
		eventbus.KeyUser:    user,
		eventbus.KeyURI:     uri,
	})

	if res.unreachable > 0 && res.unreachable == len(devices) {
		return fmt.Errorf("pushing message %s: %w", uri, ErrGatewayUnreachable)
	}

	s.logger.Info("pushed message to APNs",
		"uri", uri,
		"user", user,
		"delivered", res.delivered,
		"rejected", res.rejected,
		"unreachable", res.unreachable,
	)
	return nil
}

// deliver makes exactly one attempt for one device and records the outcome.
func (s *dispatchServiceImpl) deliver(
	ctx context.Context,
	eventID, user string,
	sender notification.Sender,
	n notification.Notification,
	res *attemptResult,
) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	payload := map[string]string{
		eventbus.KeyEventID:     eventID,
		eventbus.KeyUser:        user,
		eventbus.KeyDeviceToken: n.DeviceToken,
	}

	resp, err := sender.Send(ctx, n)
	switch {
	case err != nil:
		res.unreachable++
		s.logger.Error("APNs request failed", "device_token", n.DeviceToken, "error", err)
		payload[eventbus.KeyReason] = err.Error()
		s.bus.Publish(eventbus.TypePushFailed, payload)
	case !resp.Delivered():
		res.rejected++
		s.logger.Error("APNs error",
			"device_token", n.DeviceToken,
			"http_status", resp.StatusCode,
			"reason", resp.Reason,
		)
		payload[eventbus.KeyHTTPStatus] = strconv.Itoa(resp.StatusCode)
		payload[eventbus.KeyReason] = resp.Reason
		s.bus.Publish(eventbus.TypePushFailed, payload)
	default:
		res.delivered++
		s.logger.Debug("APNs response", "device_token", n.DeviceToken, "http_status", resp.StatusCode, "apns_id", resp.ID)
		payload[eventbus.KeyHTTPStatus] = strconv.Itoa(resp.StatusCode)
		s.bus.Publish(eventbus.TypePushDelivered, payload)
	}
}
