package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tasktrack/internal/config"
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/storage"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

// app holds what every subcommand shares: config, logger, event bus and
// the optional audit log.
type app struct {
	cfg   *config.Config
	debug bool
	bus   *events.Bus

	audit       *storage.EventLogger
	auditDir    string
	auditPinned bool // set by --audit-log, survives reloads
}

func setup(cmd *cli.Command) (*app, error) {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		// A missing default config file is the normal case.
		if cmd.IsSet("config") || !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config not loaded, using defaults", "path", configPath, "error", err)
		}
		cfg = config.Default()
	}

	logger, err := config.NewLogger(os.Stderr, cfg.Log, cmd.Bool("debug"))
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	a := &app{
		cfg:   cfg,
		debug: cmd.Bool("debug"),
		bus:   events.NewBus(cfg.Events.BufferSize),
	}
	auditDir := cfg.Events.AuditLog
	if cmd.IsSet("audit-log") {
		auditDir = cmd.String("audit-log")
		a.auditPinned = true
	}
	a.setAuditLog(auditDir)
	return a, nil
}

// setAuditLog writes further events under dir. An empty dir turns the audit
// log off.
func (a *app) setAuditLog(dir string) {
	if dir == a.auditDir {
		return
	}
	a.closeAudit()
	a.auditDir = dir
	if dir != "" {
		a.audit = storage.NewEventLogger(dir, a.bus)
		slog.Debug("audit log enabled", "dir", dir)
	}
}

func (a *app) closeAudit() {
	if a.audit == nil {
		return
	}
	a.audit.Close()
	if n := a.audit.Errors(); n > 0 {
		slog.Warn("audit log incomplete", "dir", a.auditDir, "failed_writes", n)
	}
	a.audit = nil
}

// applyConfig switches a running session to cfg. The event buffer size only
// applies to new sessions.
func (a *app) applyConfig(cfg *config.Config, tr *tracker.Tracker, runID string) error {
	logger, err := config.NewLogger(os.Stderr, cfg.Log, a.debug)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	tr.SetLogger(logger.With("run_id", runID))
	tr.SetHistoryLimit(cfg.History.Limit)
	if !a.auditPinned {
		a.setAuditLog(cfg.Events.AuditLog)
	}
	if cfg.Events.BufferSize != a.cfg.Events.BufferSize {
		slog.Warn("events.buffer_size applies to new sessions only", "current", a.cfg.Events.BufferSize, "configured", cfg.Events.BufferSize)
	}
	a.cfg = cfg
	return nil
}

// newTracker creates a tracker whose events are tagged with runID.
func (a *app) newTracker(ctx context.Context, runID string) *tracker.Tracker {
	return tracker.New(nil,
		tracker.WithHistoryLimit(a.cfg.History.Limit),
		tracker.WithPublisher(busPublisher{ctx: ctx, bus: a.bus}),
		tracker.WithRunID(runID),
		tracker.WithLogger(slog.Default().With("run_id", runID)),
	)
}

// Close flushes pending events to the audit log.
func (a *app) Close() {
	a.bus.Close()
	a.closeAudit()
}

// busPublisher waits for room on the bus rather than dropping events.
type busPublisher struct {
	ctx context.Context
	bus *events.Bus
}

func (p busPublisher) Publish(e events.Event) {
	if err := p.bus.PublishAsync(p.ctx, e); err != nil {
		slog.Debug("event dropped", "type", e.Type, "error", err)
	}
}
