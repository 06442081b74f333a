package service

import (
	"context"
	"encoding/json"
	"fmt"
)

// Router classifies one input event and hands it to the matching service.
type Router struct {
	registration RegistrationService
	dispatch     DispatchService
}

// NewRouter returns a Router.
func NewRouter(registration RegistrationService, dispatch DispatchService) *Router {
	return &Router{registration: registration, dispatch: dispatch}
}

// Route decodes payload, which must be one complete JSON object, and runs
// the handler for its "event" field. It returns the event kind (empty when
// the input could not be classified) alongside any error.
func (r *Router) Route(ctx context.Context, id string, payload []byte) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return "", fmt.Errorf("parsing input JSON: %w", ErrInvalidInput)
	}
	kind, ok := fields["event"].(string)
	if !ok {
		return "", fmt.Errorf("reading event kind: %w", ErrInvalidInput)
	}

	ev := Event{ID: id, Fields: fields}
	switch kind {
	case EventRegister:
		if err := r.registration.Register(ctx, ev); err != nil {
			return kind, fmt.Errorf("device registration failed: %w", err)
		}
	case EventMessageNew:
		if err := r.dispatch.Dispatch(ctx, ev); err != nil {
			return kind, fmt.Errorf("failed to push notification: %w", err)
		}
	default:
		return kind, &UnsupportedEventError{Event: kind}
	}
	return kind, nil
}
