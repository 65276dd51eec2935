// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/db"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/middleware"
	"github.com/danielhkuo/quickly-draw/router"
)

// shutdownTimeout bounds graceful shutdown of the server, the sweep and
// queued notifications.
const shutdownTimeout = 15 * time.Second

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Connect to the database
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err, "type", cfg.DatabaseType)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	eng := engine.New(dbConn,
		engine.WithCountdown(cfg.DrawCountdown),
		engine.WithSweepConcurrency(cfg.SweepConcurrency),
		engine.WithNotifier(engine.NewOutboxNotifier(dbConn)),
	)

	// Draws that came due while the server was down are finalized on the
	// first tick; readers finalize lazily in between.
	scheduler, err := engine.NewScheduler(eng, cfg.SweepSchedule)
	if err != nil {
		slog.Error("invalid sweep schedule", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	// Create router
	mux := router.NewRouter(dbConn, cfg, eng)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			slog.Warn("sweep did not stop in time", "error", err)
		}
		if err := eng.Wait(shutdownCtx); err != nil {
			slog.Warn("notifications still pending at shutdown", "error", err)
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
