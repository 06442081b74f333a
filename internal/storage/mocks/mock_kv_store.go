package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

// MockKVStore is a mock implementation of storage.KVStore.
type MockKVStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockKVStore) Put(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

//nolint:revive
func (m *MockKVStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockKVStore) Update(ctx context.Context, key string, fn storage.UpdateFunc) (string, error) {
	args := m.Called(ctx, key, fn)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockKVStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
