// Package mirror runs the long-lived sync daemon: an initial full fetch from
// the backend, a websocket subscription feeding the notification dispatcher,
// scheduled re-syncs with snapshot archival, and an optional Prometheus
// scrape endpoint.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"planningsync/internal/blob"
	"planningsync/internal/bus"
	"planningsync/internal/config"
	"planningsync/internal/core"
	"planningsync/internal/dispatch"
	"planningsync/internal/gateway"
	"planningsync/pkg/domain"
)

// Mirror wires the sync core to its transports and side channels.
type Mirror struct {
	cfg      *config.Config
	service  *core.Service
	gateway  gateway.Gateway
	archive  blob.Store
	logger   *slog.Logger
	registry *prometheus.Registry
}

// Option configures optional mirror collaborators.
type Option func(*Mirror)

// WithArchive attaches a snapshot archive store. Without one, scheduled
// snapshots are skipped.
func WithArchive(store blob.Store) Option {
	return func(m *Mirror) { m.archive = store }
}

// WithMetricsRegistry attaches the registry served on the /metrics endpoint.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(m *Mirror) { m.registry = reg }
}

// New constructs a mirror daemon. A nil logger falls back to slog.Default.
func New(cfg *config.Config, service *core.Service, gw gateway.Gateway, logger *slog.Logger, opts ...Option) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{cfg: cfg, service: service, gateway: gw, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// logNotifier surfaces dispatcher fetch failures through the daemon log.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Error(message string) {
	n.logger.Error("notification reconciliation failed", "message", message)
}

// FullSync replaces the cached state with the backend's current view: all
// entities are fetched, lock state is rebuilt, and the visible lists are
// reset to everything fetched.
func (m *Mirror) FullSync(ctx context.Context) error {
	start := time.Now()

	events, err := m.gateway.QueryEvents(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	plannings, err := m.gateway.QueryPlannings(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetch plannings: %w", err)
	}
	assignments, err := m.gateway.QueryAssignments(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetch assignments: %w", err)
	}

	if _, err := m.service.Apply(ctx, domain.ReducerAction{
		Type: domain.ActionReceiveLocks,
		Payload: domain.ReceiveLocksPayload{
			Events:      events,
			Plans:       plannings,
			Assignments: assignments,
		},
	}); err != nil {
		return fmt.Errorf("apply fetched state: %w", err)
	}

	eventIDs := make([]string, 0, len(events))
	for _, event := range events {
		eventIDs = append(eventIDs, event.ID)
	}
	if _, err := m.service.Apply(ctx, domain.ReducerAction{
		Type:    domain.ActionSetEventsList,
		Payload: domain.ListPayload{IDs: eventIDs},
	}); err != nil {
		return fmt.Errorf("set events list: %w", err)
	}

	planningIDs := make([]string, 0, len(plannings))
	for _, plan := range plannings {
		planningIDs = append(planningIDs, plan.ID)
	}
	if _, err := m.service.Apply(ctx, domain.ReducerAction{
		Type:    domain.ActionSetPlanningsList,
		Payload: domain.ListPayload{IDs: planningIDs},
	}); err != nil {
		return fmt.Errorf("set plannings list: %w", err)
	}

	m.logger.Info("full sync complete",
		"events", len(events),
		"plannings", len(plannings),
		"assignments", len(assignments),
		"elapsed", time.Since(start))
	return nil
}

// SnapshotKey names an archived snapshot taken at the given instant.
func SnapshotKey(at time.Time) string {
	return "snapshots/" + at.UTC().Format("20060102T150405.000Z") + ".json"
}

// ExportSnapshot archives the current store state as a JSON blob. Returns the
// stored blob info.
func (m *Mirror) ExportSnapshot(ctx context.Context) (blob.Info, error) {
	if m.archive == nil {
		return blob.Info{}, errors.New("no snapshot archive configured")
	}
	snapshot := m.service.Store().ExportState()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	info, err := m.archive.Put(ctx, SnapshotKey(time.Now()), bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"session": m.service.Session().Session},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive snapshot: %w", err)
	}
	m.logger.Info("snapshot archived", "key", info.Key, "bytes", info.Size)
	return info, nil
}

// Run performs the initial sync, then blocks serving notifications until the
// context is cancelled. Scheduled re-syncs and the metrics endpoint run
// alongside the subscriber.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.FullSync(ctx); err != nil {
		return err
	}

	if m.cfg.RefreshCron != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(m.cfg.RefreshCron, func() { m.refresh(ctx) }); err != nil {
			return fmt.Errorf("schedule refresh %q: %w", m.cfg.RefreshCron, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if m.cfg.MetricsListen != "" && m.registry != nil {
		server := m.metricsServer()
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("metrics server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	dispatcher := dispatch.NewDispatcher(m.service, m.gateway, logNotifier{logger: m.logger})
	subscriber := bus.NewSubscriber(m.cfg.WebsocketURL, m.logger)
	subscriber.SubscribeAll(busHandlers(dispatcher.Handlers()))
	return subscriber.Run(ctx)
}

func (m *Mirror) refresh(ctx context.Context) {
	if err := m.FullSync(ctx); err != nil {
		m.logger.Error("scheduled sync failed", "err", err)
		return
	}
	if m.archive == nil {
		return
	}
	if _, err := m.ExportSnapshot(ctx); err != nil {
		m.logger.Error("scheduled snapshot failed", "err", err)
	}
}

func (m *Mirror) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              m.cfg.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func busHandlers(handlers map[string]dispatch.Handler) map[string]bus.Handler {
	out := make(map[string]bus.Handler, len(handlers))
	for event, handler := range handlers {
		out[event] = bus.Handler(handler)
	}
	return out
}
