package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edsmon/edsmon/pkg/eds"
	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/metrics"
	"github.com/edsmon/edsmon/pkg/publish"
	"github.com/edsmon/edsmon/pkg/pvpc"
	"github.com/edsmon/edsmon/pkg/server"
	"github.com/edsmon/edsmon/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	store := storage.Configured()
	connector := eds.Configured(store)
	prices := pvpc.Configured()
	engine := metrics.Configured(connector, prices)
	publisher := publish.Configured()

	// init server
	srv := server.Configured(engine)

	tickInterval := lflag.Duration("tick-interval", time.Minute, "How often the engine re-evaluates staleness")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := store.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	if publisher.Enabled() {
		if err := publisher.Connect(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to connect to mqtt broker", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	// drive the engine on a fixed tick, it decides internally what is stale
	go func() {
		tick := func() {
			if err := engine.Refresh(ctx, ""); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "refresh failed", "error", err)
				return
			}
			snap := engine.Snapshot()
			if snap.UpdatedAt.IsZero() {
				return
			}
			if err := publisher.Publish(ctx, snap); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to publish snapshot", "error", err)
			}
		}

		tick()
		ticker := time.NewTicker(*tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
