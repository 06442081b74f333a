package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

// MockDeliveryStore is a mock implementation of storage.DeliveryStore.
type MockDeliveryStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockDeliveryStore) LogDelivery(ctx context.Context, entry storage.DeliveryLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

//nolint:revive
func (m *MockDeliveryStore) ListDeliveries(ctx context.Context, limit int) ([]storage.DeliveryLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DeliveryLogEntry), args.Error(1)
}
