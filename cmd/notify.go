package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/apns-notifyd/internal/config"
	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
	"github.com/shaharia-lab/apns-notifyd/internal/logger"
	"github.com/shaharia-lab/apns-notifyd/internal/metrics"
	"github.com/shaharia-lab/apns-notifyd/internal/registry"
	"github.com/shaharia-lab/apns-notifyd/internal/service"
)

func runNotify(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, closer, err := logger.New(cfg.LogDir, cfg.SlogLevel())
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return handleEvent(ctx, cfg, log, cmd.InOrStdin(), service.APNsSenderFactory)
}

// handleEvent processes the single event read from in: it opens the
// registry, routes the event, then flushes bookkeeping before returning.
func handleEvent(
	ctx context.Context,
	cfg *config.AppConfig,
	log *slog.Logger,
	in io.Reader,
	newSender service.SenderFactory,
) error {
	eventID := uuid.New().String()
	log = logger.WithEvent(log, eventID)
	log.Debug("apns-notifyd started")

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer st.Close(log)

	m := metrics.New()
	bus := eventbus.New(0, log)
	bus.Subscribe(m.Listener())
	if st.deliveries != nil {
		bus.Subscribe(service.DeliveryLogListener(st.deliveries, log))
	}

	reg := registry.New(st.kv)
	router := service.NewRouter(
		service.NewRegistrationService(reg, bus, log),
		service.NewDispatchService(reg, cfg.APNs(), newSender, bus, log),
	)

	err = routeInput(ctx, router, m, eventID, in)

	bus.Close()
	if cfg.PushgatewayURL != "" {
		if perr := m.Push(ctx, cfg.PushgatewayURL); perr != nil {
			log.Warn("failed to push metrics", "error", perr)
		}
	}

	if err != nil {
		log.Error("event handling failed", "error", err)
		return err
	}
	return nil
}

// routeInput reads the whole event from in, routes it and records the
// outcome, including input that could not be read.
func routeInput(ctx context.Context, router *service.Router, m *metrics.Metrics, eventID string, in io.Reader) error {
	payload, err := io.ReadAll(in)
	if err != nil {
		err = fmt.Errorf("reading input: %w", err)
		m.ObserveEvent("", err)
		return err
	}
	kind, err := router.Route(ctx, eventID, payload)
	m.ObserveEvent(kind, err)
	return err
}
