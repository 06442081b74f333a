// Package registry maps mail users to the devices registered for push
// alerts. It owns the key layout inside a storage.KVStore:
//
//	device_<token>  -> account id
//	<user>          -> "tokN,...,tok1," (newest first, not deduplicated)
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

const deviceKeyPrefix = "device_"

// ErrAccountNotFound is returned by AccountID when a device has no
// registration record.
var ErrAccountNotFound = errors.New("device has no account id")

// DeviceKey returns the store key holding the account id for token.
func DeviceKey(token string) string {
	return deviceKeyPrefix + token
}

// PrependDevice returns list with token added at the front. The result
// always ends with a comma, so an empty list yields "token,".
func PrependDevice(list, token string) string {
	return token + "," + list
}

// ParseDevices splits a stored device list, dropping empty fields.
func ParseDevices(list string) []string {
	fields := strings.Split(list, ",")
	devices := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		devices = append(devices, f)
	}
	return devices
}

// Registry reads and writes device registrations.
type Registry struct {
	store storage.KVStore
}

// New returns a Registry over store.
func New(store storage.KVStore) *Registry {
	return &Registry{store: store}
}

// Register records the account for token and prepends token to the user's
// device list. The two writes are separate store operations; a failure
// between them leaves the device recorded but not listed.
func (r *Registry) Register(ctx context.Context, user, token, accountID string) error {
	if err := r.store.Put(ctx, DeviceKey(token), accountID); err != nil {
		return fmt.Errorf("storing account for device %q: %w", token, err)
	}
	_, err := r.store.Update(ctx, user, func(old string, _ bool) (string, error) {
		return PrependDevice(old, token), nil
	})
	if err != nil {
		return fmt.Errorf("adding device %q to user %q: %w", token, user, err)
	}
	return nil
}

// Devices returns the tokens registered for user, newest first. ok is false
// when the user has never registered a device.
func (r *Registry) Devices(ctx context.Context, user string) (devices []string, ok bool, err error) {
	list, err := r.store.Get(ctx, user)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading devices for user %q: %w", user, err)
	}
	return ParseDevices(list), true, nil
}

// AccountID returns the account id stored for token, or an error wrapping
// ErrAccountNotFound.
func (r *Registry) AccountID(ctx context.Context, token string) (string, error) {
	account, err := r.store.Get(ctx, DeviceKey(token))
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("device %q: %w", token, ErrAccountNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("loading account for device %q: %w", token, err)
	}
	return account, nil
}
