package service

import (
	"context"
	"log/slog"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
)

// RegistrationService handles device registration events.
type RegistrationService interface {
	// Register stores the device's account id and links the device to the
	// user. It writes nothing if a required field is missing.
	Register(ctx context.Context, ev Event) error
}

type registrationServiceImpl struct {
	registry *registry.Registry
	bus      eventbus.EventBus
	logger   *slog.Logger
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(reg *registry.Registry, bus eventbus.EventBus, logger *slog.Logger) RegistrationService {
	return &registrationServiceImpl{registry: reg, bus: bus, logger: logger}
}

func (s *registrationServiceImpl) Register(ctx context.Context, ev Event) error {
	accountID, ok := ev.String("apsAccountId")
	if !ok {
		return &RegistrationError{Field: "apsAccountId"}
	}
	token, ok := ev.String("apsDeviceToken")
	if !ok {
		return &RegistrationError{Field: "apsDeviceToken"}
	}
	user, ok := ev.String("user")
	if !ok {
		return &RegistrationError{Field: "user"}
	}

	if err := s.registry.Register(ctx, user, token, accountID); err != nil {
		return err
	}

	s.logger.Info("registered device for push notifications", "device_token", token, "user", user)
	s.bus.Publish(eventbus.TypeDeviceRegistered, map[string]string{
		eventbus.KeyEventID:     ev.ID,
		eventbus.KeyUser:        user,
		eventbus.KeyDeviceToken: token,
	})
	return nil
}
