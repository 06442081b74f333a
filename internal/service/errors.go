package service

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is by callers.
var (
	// ErrInvalidInput is returned when the input is not a JSON object with a
	// string "event" field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedRequest is matched by RegistrationError and PushError.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnsupportedEvent is matched by UnsupportedEventError.
	ErrUnsupportedEvent = errors.New("unsupported event")
	// ErrInconsistentRegistry is matched by InconsistencyError.
	ErrInconsistentRegistry = errors.New("inconsistent registry state")
)

// RegistrationError is returned when a registration event lacks a required
// string field.
type RegistrationError struct {
	Field string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("malformed registration request: missing or non-string field %q", e.Field)
}

// Is reports whether target is ErrMalformedRequest.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrMalformedRequest
}

// PushError is returned when a new-message event lacks a required string
// field.
type PushError struct {
	Field string
}

func (e *PushError) Error() string {
	return fmt.Sprintf("malformed push request: missing or non-string field %q", e.Field)
}

// Is reports whether target is ErrMalformedRequest.
func (e *PushError) Is(target error) bool {
	return target == ErrMalformedRequest
}

// UnsupportedEventError is returned for an event kind the relay does not handle.
type UnsupportedEventError struct {
	Event string
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("unsupported push event %q", e.Event)
}

// Is reports whether target is ErrUnsupportedEvent.
func (e *UnsupportedEventError) Is(target error) bool {
	return target == ErrUnsupportedEvent
}

// InconsistencyError is returned when a user's device list names a device
// that has no account id.
type InconsistencyError struct {
	DeviceToken string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent registry state: missing account id for device %q", e.DeviceToken)
}

// Is reports whether target is ErrInconsistentRegistry.
func (e *InconsistencyError) Is(target error) bool {
	return target == ErrInconsistentRegistry
}
