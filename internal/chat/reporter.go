// ABOUTME: Derives the watch readiness status from persisted settings and publishes it
// ABOUTME: Runs at startup, when a watch link subscribes, and after every settings update

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/spark-gateway/internal/settings"
	"github.com/2389/spark-gateway/internal/store"
	"github.com/2389/spark-gateway/internal/watch"
)

// Reporter publishes readiness to connected watch links.
type Reporter struct {
	settings store.SettingsStore
	hub      *watch.Hub
	logger   *slog.Logger
}

// NewReporter creates a Reporter. Pass nil logger for default.
func NewReporter(s store.SettingsStore, hub *watch.Hub, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		settings: s,
		hub:      hub,
		logger:   logger.With("component", "readiness"),
	}
}

// Status computes the current readiness without publishing it. A settings
// read failure reports not ready.
func (r *Reporter) Status(ctx context.Context) watch.Status {
	persisted, err := r.settings.GetSettings(ctx)
	if err != nil {
		r.logger.Error("failed to read settings", "error", err)
		persisted = map[string]string{}
	}
	return settings.Readiness(persisted)
}

// Report computes readiness and publishes it.
func (r *Reporter) Report(ctx context.Context) watch.Status {
	status := r.Status(ctx)
	r.hub.Publish(status)
	r.logger.Info("sending ready status", "ready", status.Ready, "provider_name", status.ProviderName)
	return status
}

// ApplySettings stores a settings update from the config page and reports
// the resulting readiness.
func (r *Reporter) ApplySettings(ctx context.Context, update map[string]string) (watch.Status, error) {
	set, clear := settings.Normalize(update)
	if err := r.settings.ApplySettings(ctx, set, clear); err != nil {
		return watch.Status{}, fmt.Errorf("applying settings: %w", err)
	}

	for key := range set {
		r.logger.Debug("setting saved", "key", key)
	}
	for _, key := range clear {
		r.logger.Debug("setting cleared", "key", key)
	}

	return r.Report(ctx), nil
}
