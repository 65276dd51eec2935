// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/engine"
	"github.com/danielhkuo/quickly-draw/handlers"
	"github.com/danielhkuo/quickly-draw/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, eng *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	raffleHandler := handlers.NewRaffleHandler(db, cfg, eng)
	participationHandler := handlers.NewParticipationHandler(db, cfg, eng)
	drawHandler := handlers.NewDrawHandler(db, cfg, eng)
	deviceHandler := handlers.NewDeviceHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Raffle management (admin operations)
	mux.HandleFunc("POST /raffles", middleware.WithLogging(raffleHandler.CreateRaffle))
	mux.HandleFunc("GET /raffles/{id}/admin", middleware.WithLogging(raffleHandler.GetRaffleAdmin))
	mux.HandleFunc("POST /raffles/{id}/publish", middleware.WithLogging(raffleHandler.PublishRaffle))
	mux.HandleFunc("POST /raffles/{id}/cancel", middleware.WithLogging(raffleHandler.CancelRaffle))
	mux.HandleFunc("POST /raffles/{id}/draw/schedule", middleware.WithLogging(drawHandler.ScheduleDraw))
	mux.HandleFunc("POST /raffles/{id}/draw/run", middleware.WithLogging(drawHandler.RunDraw))

	// Entering (public)
	mux.HandleFunc("POST /raffles/{slug}/participations", middleware.WithLogging(participationHandler.Enter))
	mux.HandleFunc("GET /raffles/{slug}/my-participation", middleware.WithLogging(participationHandler.GetMyParticipation))

	// Draw status and audit (public, secret sealed until drawn)
	mux.HandleFunc("GET /raffles/{slug}", middleware.WithLogging(drawHandler.GetRaffle))
	mux.HandleFunc("GET /raffles/{slug}/draw", middleware.WithLogging(drawHandler.GetDrawStatus))
	mux.HandleFunc("GET /raffles/{slug}/audit", middleware.WithLogging(drawHandler.GetAudit))

	// Device management
	mux.HandleFunc("POST /devices/register", middleware.WithLogging(deviceHandler.Register))
	mux.HandleFunc("GET /devices/me", middleware.WithLogging(deviceHandler.GetMe))
	mux.HandleFunc("GET /devices/my-raffles", middleware.WithLogging(deviceHandler.GetMyRaffles))
	mux.HandleFunc("GET /devices/notifications", middleware.WithLogging(deviceHandler.GetNotifications))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-draw API v1"))
	})

	return mux
}
