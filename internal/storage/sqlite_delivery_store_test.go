package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

func TestSQLiteDeliveryStore(t *testing.T) {
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := storage.NewSQLiteDeliveryStore(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("log and list", func(t *testing.T) {
		entry := storage.DeliveryLogEntry{
			EventID:     "evt-1",
			User:        "alice",
			DeviceToken: "dev1",
			Status:      storage.DeliveryStatusDelivered,
			HTTPStatus:  200,
			CreatedAt:   base,
		}
		require.NoError(t, store.LogDelivery(ctx, entry))

		list, err := store.ListDeliveries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got := list[0]
		assert.Equal(t, entry.EventID, got.EventID)
		assert.Equal(t, entry.User, got.User)
		assert.Equal(t, entry.DeviceToken, got.DeviceToken)
		assert.Equal(t, entry.Status, got.Status)
		assert.Equal(t, 200, got.HTTPStatus)
		assert.NotZero(t, got.ID)
	})

	t.Run("failed status", func(t *testing.T) {
		entry := storage.DeliveryLogEntry{
			EventID:     "evt-2",
			User:        "alice",
			DeviceToken: "dev2",
			Status:      storage.DeliveryStatusFailed,
			HTTPStatus:  410,
			Reason:      "Unregistered",
			CreatedAt:   base.Add(time.Second),
		}
		require.NoError(t, store.LogDelivery(ctx, entry))

		list, err := store.ListDeliveries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		// Latest entry is first.
		assert.Equal(t, storage.DeliveryStatusFailed, list[0].Status)
		assert.Equal(t, "Unregistered", list[0].Reason)
	})

	t.Run("limit", func(t *testing.T) {
		list, err := store.ListDeliveries(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("default limit", func(t *testing.T) {
		list, err := store.ListDeliveries(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}
