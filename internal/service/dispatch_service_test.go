package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/notification"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
	"github.com/shaharia-lab/apns-notifyd/internal/service"
	"github.com/shaharia-lab/apns-notifyd/internal/storage/mocks"
)

func newMessage(user string) service.Event {
	return service.Event{ID: "evt-2", Fields: map[string]any{
		"event": service.EventMessageNew,
		"user":  user,
		"uri":   "imap://alice@mail.example.com/INBOX;UIDVALIDITY=1/;UID=7",
	}}
}

func TestDispatch_NoDevicesIsSuccess(t *testing.T) {
	reg, _ := newRegistry(t)
	sender := &fakeSender{}
	bus := &recordingBus{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), bus, discardLogger())

	require.NoError(t, svc.Dispatch(context.Background(), newMessage("nobody")))
	assert.Empty(t, sender.sent)
	assert.Empty(t, bus.types())
}

func TestDispatch_SkipsEmptyTokens(t *testing.T) {
	reg, store := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "alice", "tokA,,tokB,"))
	require.NoError(t, store.Put(ctx, "device_tokA", "accA"))
	require.NoError(t, store.Put(ctx, "device_tokB", "accB"))

	sender := &fakeSender{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger())

	require.NoError(t, svc.Dispatch(ctx, newMessage("alice")))
	assert.Equal(t, []string{"tokA", "tokB"}, sender.tokens())
	assert.Equal(t, "accA", sender.sent[0].AccountID)
	assert.Equal(t, "accB", sender.sent[1].AccountID)
}

func TestDispatch_BuildsNotification(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))

	fixed := time.Unix(1700000000, 0)
	sender := &fakeSender{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger(),
		service.WithClock(func() time.Time { return fixed }))

	require.NoError(t, svc.Dispatch(ctx, newMessage("alice")))
	require.Len(t, sender.sent, 1)
	sent := sender.sent[0]
	assert.Equal(t, int64(1700086400), sent.Expiration.Unix())
	sent.Expiration = time.Time{}
	assert.Equal(t, notification.Notification{
		DeviceToken: "dev1",
		AccountID:   "acc1",
		Topic:       "com.example.mail",
		Priority:    10,
	}, sent)
}

func TestDispatch_RejectionDoesNotStopLoop(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))
	require.NoError(t, reg.Register(ctx, "alice", "dev2", "acc1"))
	require.NoError(t, reg.Register(ctx, "alice", "dev3", "acc1"))

	sender := &fakeSender{results: map[string]sendResult{
		"dev3": {resp: &notification.Response{StatusCode: http.StatusBadRequest, Reason: "BadDeviceToken"}},
		"dev2": {err: errors.New("connection reset")},
	}}
	bus := &recordingBus{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), bus, discardLogger())

	require.NoError(t, svc.Dispatch(ctx, newMessage("alice")))
	assert.Equal(t, []string{"dev3", "dev2", "dev1"}, sender.tokens())
	assert.Equal(t, []string{
		eventbus.TypePushFailed,
		eventbus.TypePushFailed,
		eventbus.TypePushDelivered,
		eventbus.TypeDispatchFinished,
	}, bus.types())

	failed := bus.events[0].Payload
	assert.Equal(t, "dev3", failed[eventbus.KeyDeviceToken])
	assert.Equal(t, "400", failed[eventbus.KeyHTTPStatus])
	assert.Equal(t, "BadDeviceToken", failed[eventbus.KeyReason])
	assert.Equal(t, "evt-2", failed[eventbus.KeyEventID])
}

func TestDispatch_AllUnreachableFails(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))
	require.NoError(t, reg.Register(ctx, "alice", "dev2", "acc1"))

	down := sendResult{err: errors.New("dial tcp: connection refused")}
	sender := &fakeSender{results: map[string]sendResult{"dev1": down, "dev2": down}}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger())

	err := svc.Dispatch(ctx, newMessage("alice"))
	assert.ErrorIs(t, err, service.ErrGatewayUnreachable)
	assert.Len(t, sender.sent, 2, "every device is still attempted once")
}

// cancellingSender delivers the first device, then behaves like a
// connection torn down by a signal: it cancels the invocation context and
// fails every later request.
type cancellingSender struct {
	cancel context.CancelFunc
	sent   []string
}

func (c *cancellingSender) Name() string { return "cancelling" }

func (c *cancellingSender) Send(ctx context.Context, n notification.Notification) (*notification.Response, error) {
	c.sent = append(c.sent, n.DeviceToken)
	if len(c.sent) == 1 {
		return &notification.Response{StatusCode: http.StatusOK}, nil
	}
	c.cancel()
	return nil, ctx.Err()
}

func TestDispatch_StopsWhenCancelled(t *testing.T) {
	reg, _ := newRegistry(t)
	setup := context.Background()
	for _, token := range []string{"dev1", "dev2", "dev3", "dev4"} {
		require.NoError(t, reg.Register(setup, "alice", token, "acc1"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &cancellingSender{cancel: cancel}
	bus := &recordingBus{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), bus, discardLogger())

	err := svc.Dispatch(ctx, newMessage("alice"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"dev4", "dev3"}, sender.sent, "no device is attempted after cancellation")
	assert.NotContains(t, bus.types(), eventbus.TypeDispatchFinished)
}

func TestDispatch_MissingAccountIsFatal(t *testing.T) {
	reg, store := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "alice", "dev1,ghost,dev2,"))
	require.NoError(t, store.Put(ctx, "device_dev1", "acc1"))
	require.NoError(t, store.Put(ctx, "device_dev2", "acc2"))

	sender := &fakeSender{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger())

	err := svc.Dispatch(ctx, newMessage("alice"))
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInconsistentRegistry)
	var incErr *service.InconsistencyError
	require.ErrorAs(t, err, &incErr)
	assert.Equal(t, "ghost", incErr.DeviceToken)
	assert.Equal(t, []string{"dev1"}, sender.tokens())
}

func TestDispatch_MissingUser(t *testing.T) {
	store := &mocks.MockKVStore{}
	sender := &fakeSender{}
	svc := service.NewDispatchService(registry.New(store), apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger())

	ev := newMessage("alice")
	delete(ev.Fields, "user")
	err := svc.Dispatch(context.Background(), ev)
	assert.ErrorIs(t, err, service.ErrMalformedRequest)

	ev.Fields["user"] = 7.0
	err = svc.Dispatch(context.Background(), ev)
	assert.ErrorIs(t, err, service.ErrMalformedRequest)

	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	assert.Empty(t, sender.sent)
}

func TestDispatch_MissingURIIsAllowed(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))

	sender := &fakeSender{}
	svc := service.NewDispatchService(reg, apnsConfig(), factoryFor(sender), &recordingBus{}, discardLogger())

	ev := newMessage("alice")
	delete(ev.Fields, "uri")
	require.NoError(t, svc.Dispatch(ctx, ev))
	assert.Len(t, sender.sent, 1)
}

func TestDispatch_Preconditions(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))

	t.Run("no topic", func(t *testing.T) {
		cfg := apnsConfig()
		cfg.Topic = ""
		sender := &fakeSender{}
		svc := service.NewDispatchService(reg, cfg, factoryFor(sender), &recordingBus{}, discardLogger())

		err := svc.Dispatch(ctx, newMessage("alice"))
		assert.ErrorIs(t, err, notification.ErrNoTopic)
		assert.Empty(t, sender.sent)
	})

	t.Run("no identity", func(t *testing.T) {
		cfg := apnsConfig()
		cfg.IdentityPath = ""
		svc := service.NewDispatchService(reg, cfg, service.APNsSenderFactory, &recordingBus{}, discardLogger())

		err := svc.Dispatch(ctx, newMessage("alice"))
		assert.ErrorIs(t, err, notification.ErrNoIdentity)
	})

	t.Run("unreadable identity", func(t *testing.T) {
		cfg := apnsConfig()
		cfg.IdentityPath = t.TempDir() + "/missing.pem"
		svc := service.NewDispatchService(reg, cfg, service.APNsSenderFactory, &recordingBus{}, discardLogger())

		err := svc.Dispatch(ctx, newMessage("alice"))
		assert.ErrorContains(t, err, "creating push sender")
	})
}

func TestDispatch_StoreError(t *testing.T) {
	store := &mocks.MockKVStore{}
	store.On("Get", mock.Anything, "alice").Return("", errors.New("disk I/O error"))
	svc := service.NewDispatchService(registry.New(store), apnsConfig(), factoryFor(&fakeSender{}), &recordingBus{}, discardLogger())

	err := svc.Dispatch(context.Background(), newMessage("alice"))
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestDispatch_OverHTTP2Gateway(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/3/device/dev1" {
			w.WriteHeader(http.StatusGone)
			_, _ = io.WriteString(w, `{"reason":"Unregistered"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "alice", "dev1", "acc1"))
	require.NoError(t, reg.Register(ctx, "alice", "dev2", "acc2"))

	factory := func(cfg notification.APNsConfig) (notification.Sender, error) {
		return notification.NewAPNsSender(cfg.Gateway, srv.Client()), nil
	}
	cfg := apnsConfig()
	cfg.Gateway = srv.URL
	cfg.Timeout = 5 * time.Second
	svc := service.NewDispatchService(reg, cfg, factory, &recordingBus{}, discardLogger())

	require.NoError(t, svc.Dispatch(ctx, newMessage("alice")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/3/device/dev2", "/3/device/dev1"}, paths)
}
