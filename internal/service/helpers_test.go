package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/notification"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
	"github.com/shaharia-lab/apns-notifyd/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *storage.SQLiteKVStore {
	t.Helper()
	db, err := storage.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	store := storage.NewSQLiteKVStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRegistry(t *testing.T) (*registry.Registry, *storage.SQLiteKVStore) {
	t.Helper()
	store := newStore(t)
	return registry.New(store), store
}

// --- synchronous bus ---

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(eventType string, payload map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventbus.Event{Type: eventType, Payload: payload})
}

func (b *recordingBus) Subscribe(eventbus.Listener) {}
func (b *recordingBus) Close()                      {}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

// --- scripted sender ---

type sendResult struct {
	resp *notification.Response
	err  error
}

type fakeSender struct {
	sent    []notification.Notification
	results map[string]sendResult
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, n notification.Notification) (*notification.Response, error) {
	f.sent = append(f.sent, n)
	if r, ok := f.results[n.DeviceToken]; ok {
		return r.resp, r.err
	}
	return &notification.Response{StatusCode: 200}, nil
}

func (f *fakeSender) tokens() []string {
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.DeviceToken)
	}
	return out
}

func factoryFor(s notification.Sender) func(notification.APNsConfig) (notification.Sender, error) {
	return func(notification.APNsConfig) (notification.Sender, error) { return s, nil }
}

func apnsConfig() notification.APNsConfig {
	return notification.APNsConfig{
		Gateway:      "https://gateway.invalid",
		IdentityPath: "/etc/apns/identity.pem",
		Topic:        "com.example.mail",
	}
}
