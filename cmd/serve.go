package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/agentmemory/backend/internal/bus"
	"github.com/agentmemory/backend/internal/capacity"
	"github.com/agentmemory/backend/internal/cleanup"
	"github.com/agentmemory/backend/internal/config"
	"github.com/agentmemory/backend/internal/contextgen"
	"github.com/agentmemory/backend/internal/gateway"
	"github.com/agentmemory/backend/internal/httpapi"
	"github.com/agentmemory/backend/internal/messaging"
	"github.com/agentmemory/backend/internal/routing"
	"github.com/agentmemory/backend/internal/snapshot"
	"github.com/agentmemory/backend/internal/store/pg"
	"github.com/agentmemory/backend/internal/tracing"
	"github.com/agentmemory/backend/internal/tracking"
	"github.com/agentmemory/backend/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	shutdownTracing, err := tracing.Init("agentmemory-backend")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTracingTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing: shutdown failed", "error", err)
		}
	}()

	if cfg.Database.DSN == "" {
		return fmt.Errorf("DATABASE_URL (or DB_HOST/DB_NAME/DB_USER) must be set")
	}

	stores, err := pg.NewPGStores(cfg.Database.DSN, cfg.Database.PoolSize)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer stores.Close()

	listener := bus.NewListener()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The Message Bus emits message.new only through NOTIFY, so the bridge
	// listens for it; the other components also broadcast on listener
	// directly.
	notifyChannels := []string{
		protocolChannelTasks, protocolChannelMessages, protocolChannelCapacity, protocolChannelSnapshots,
		protocol.EventMessageNew,
	}
	bridge := pg.NewBridge(cfg.Database.DSN, notifyChannels, listener)
	go bridge.Run(ctx)

	msgBus := messaging.New(stores.Messages, stores.Subscriptions, stores.Notify, cfg.MessageTTL)
	tracker := tracking.New(stores.Projects, stores.Sessions, stores.Requests, stores.Tasks,
		stores.Subtasks, stores.Actions, stores.Routing, stores.Tokens, stores.Notify, listener)
	snapEngine := snapshot.New(stores.Snapshots, stores.AgentContext, stores.Sessions, stores.Notify, listener)
	ctxGen := contextgen.New(stores.Registry, stores.Subtasks, stores.Messages, stores.Capacity)
	router := routing.New(stores.Routing)
	capMonitor := capacity.New(stores.Capacity, stores.Tokens, stores.Notify, listener)
	cleanupWorker := cleanup.New(stores.Messages, stores.Actions, stores.Snapshots, cfg.Cleanup)

	gronxCron := gronx.New()
	if !gronxCron.IsValid(cfg.Cleanup.Cron) {
		return fmt.Errorf("invalid CLEANUP_CRON expression %q", cfg.Cleanup.Cron)
	}
	go cleanupWorker.Run(ctx, gronxCron)
	go capMonitor.Run(ctx)

	api := httpapi.NewServer(cfg, stores, msgBus, tracker, snapEngine, ctxGen, router, capMonitor)
	gw := gateway.NewServer(cfg, listener)

	errCh := make(chan error, 2)
	go func() { errCh <- api.Start(ctx) }()
	go func() { errCh <- gw.Start(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

const (
	protocolChannelTasks     = "task_events"
	protocolChannelMessages  = "message_events"
	protocolChannelCapacity  = "capacity_events"
	protocolChannelSnapshots = "snapshot_events"

	shutdownTracingTimeout = 5 * time.Second
)
