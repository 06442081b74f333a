// Package metrics counts registrations and push outcomes for one
// invocation and pushes them to a Prometheus Pushgateway before exit.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/shaharia-lab/apns-notifyd/internal/eventbus"
)

// JobName is the Pushgateway job label.
const JobName = "apns_notifyd"

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	Events        *prometheus.CounterVec
	Registrations prometheus.Counter
	PushAttempts  *prometheus.CounterVec
	LastRun       prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apns_notifyd_events_total",
			Help: "Total number of input events handled, by event kind and result",
		}, []string{"event", "result"}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apns_notifyd_registrations_total",
			Help: "Total number of device registrations stored",
		}),
		PushAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apns_notifyd_push_attempts_total",
			Help: "Total number of per-device push attempts, by outcome",
		}, []string{"status"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apns_notifyd_last_run_timestamp_seconds",
			Help: "Unix time at which the last invocation finished",
		}),
	}
	m.registry.MustRegister(m.Events, m.Registrations, m.PushAttempts, m.LastRun)
	return m
}

// Gatherer exposes the private registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Listener returns an eventbus listener that updates the counters.
func (m *Metrics) Listener() eventbus.Listener {
	return func(e eventbus.Event) {
		switch e.Type {
		case eventbus.TypeDeviceRegistered:
			m.Registrations.Inc()
		case eventbus.TypePushDelivered:
			m.PushAttempts.WithLabelValues("delivered").Inc()
		case eventbus.TypePushFailed:
			m.PushAttempts.WithLabelValues("failed").Inc()
		}
	}
}

// ObserveEvent records the outcome of one routed input event.
func (m *Metrics) ObserveEvent(event string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	if event == "" {
		event = "unknown"
	}
	m.Events.WithLabelValues(event, result).Inc()
}

// Push sends all collected metrics to the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url string) error {
	m.LastRun.SetToCurrentTime()
	if err := push.New(url, JobName).Gatherer(m.registry).AddContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
