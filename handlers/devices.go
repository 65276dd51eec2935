// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/middleware"
	"github.com/danielhkuo/quickly-draw/models"
)

type DeviceHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewDeviceHandler(db *sql.DB, cfg cliparse.Config) *DeviceHandler {
	return &DeviceHandler{db: db, cfg: cfg}
}

// Register handles POST /devices/register
// A device that entered or created raffles before registering already has a
// row with the web default; registering records its real platform and
// reports how many raffles it is following.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	deviceUUID := r.Header.Get("X-Device-UUID")
	if deviceUUID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "X-Device-UUID header required")
		return
	}

	var req models.RegisterDeviceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if !isValidPlatform(req.Platform) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "platform must be one of: ios, macos, android, web")
		return
	}

	now := time.Now().UTC()
	deviceID, err := findDevice(h.db, deviceUUID)
	switch {
	case err == nil:
		_, err = h.db.Exec(`
			UPDATE device SET platform = $1, last_seen_at = $2 WHERE id = $3
		`, req.Platform, now, deviceID)
		if err != nil {
			slog.Error("failed to update device", "device_id", deviceID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		var following int
		if err := h.db.QueryRow(`
			SELECT COUNT(*) FROM device_raffle WHERE device_id = $1
		`, deviceID).Scan(&following); err != nil {
			slog.Error("failed to count device raffles", "device_id", deviceID, "error", err)
		}

		slog.Info("device re-registered", "device_id", deviceID, "platform", req.Platform, "raffles", following)
		middleware.JSONResponse(w, http.StatusOK, models.RegisterDeviceResponse{
			DeviceID: deviceID,
			IsNew:    false,
			Raffles:  following,
		})
		return
	case err != sql.ErrNoRows:
		slog.Error("failed to query device", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	deviceID, err = createDevice(h.db, deviceUUID, req.Platform, now)
	if err != nil {
		slog.Error("failed to register device", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register device")
		return
	}

	slog.Info("device registered", "device_id", deviceID, "platform", req.Platform)
	middleware.JSONResponse(w, http.StatusCreated, models.RegisterDeviceResponse{
		DeviceID: deviceID,
		IsNew:    true,
	})
}

// GetMe handles GET /devices/me
// Returns the device together with its raffle tally
func (h *DeviceHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	deviceID := h.lookupDevice(w, r)
	if deviceID == "" {
		return
	}

	var device models.DeviceInfo
	err := h.db.QueryRow(`
		SELECT
			d.id, d.platform, d.created_at, d.last_seen_at,
			COALESCE(SUM(CASE WHEN dr.role = $2 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN dr.participation_id IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN r.winning_participation_id = dr.participation_id THEN 1 ELSE 0 END), 0)
		FROM device d
		LEFT JOIN device_raffle dr ON dr.device_id = d.id
		LEFT JOIN raffle r ON r.id = dr.raffle_id
		WHERE d.id = $1
		GROUP BY d.id, d.platform, d.created_at, d.last_seen_at
	`, deviceID, models.RoleOwner).Scan(
		&device.ID, &device.Platform, &device.CreatedAt, &device.LastSeenAt,
		&device.RafflesOwned, &device.RafflesEntered, &device.RafflesWon,
	)
	if err != nil {
		slog.Error("failed to query device", "device_id", deviceID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, device)
}

// findDevice returns the id registered for a device UUID, or sql.ErrNoRows.
func findDevice(db *sql.DB, deviceUUID string) (string, error) {
	var deviceID string
	err := db.QueryRow(`SELECT id FROM device WHERE device_uuid = $1`, deviceUUID).Scan(&deviceID)
	return deviceID, err
}

func createDevice(db *sql.DB, deviceUUID, platform string, now time.Time) (string, error) {
	deviceID, err := auth.GenerateID(16)
	if err != nil {
		return "", err
	}
	_, err = db.Exec(`
		INSERT INTO device (id, device_uuid, platform, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
	`, deviceID, deviceUUID, platform, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert device: %w", err)
	}
	return deviceID, nil
}

// lookupDevice resolves the X-Device-UUID header and refreshes last_seen_at.
// It writes the error response itself and returns "" on failure.
func (h *DeviceHandler) lookupDevice(w http.ResponseWriter, r *http.Request) string {
	deviceUUID := r.Header.Get("X-Device-UUID")
	if deviceUUID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "X-Device-UUID header required")
		return ""
	}

	deviceID, err := findDevice(h.db, deviceUUID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Device not registered")
		return ""
	}
	if err != nil {
		slog.Error("failed to query device", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return ""
	}

	_, err = h.db.Exec(`
		UPDATE device SET last_seen_at = $1 WHERE id = $2
	`, time.Now().UTC(), deviceID)
	if err != nil {
		slog.Error("failed to update device last_seen_at", "error", err)
	}

	return deviceID
}

// GetMyRaffles handles GET /devices/my-raffles
// Returns raffles this device owns or entered
func (h *DeviceHandler) GetMyRaffles(w http.ResponseWriter, r *http.Request) {
	deviceID := h.lookupDevice(w, r)
	if deviceID == "" {
		return
	}

	rows, err := h.db.Query(`
		SELECT
			r.id,
			r.title,
			r.status,
			r.share_slug,
			dr.role,
			dr.participation_id,
			dr.linked_at,
			r.winning_participation_id
		FROM device_raffle dr
		JOIN raffle r ON dr.raffle_id = r.id
		WHERE dr.device_id = $1
		ORDER BY dr.linked_at DESC
	`, deviceID)

	if err != nil {
		slog.Error("failed to query device raffles", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	raffles := []models.DeviceRaffle{}
	for rows.Next() {
		var summary models.DeviceRaffle
		var winner sql.NullString

		if err := rows.Scan(
			&summary.RaffleID,
			&summary.Title,
			&summary.Status,
			&summary.ShareSlug,
			&summary.Role,
			&summary.ParticipationID,
			&summary.LinkedAt,
			&winner,
		); err != nil {
			slog.Error("failed to scan raffle", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		summary.IsWinner = winner.Valid && summary.ParticipationID != nil && *summary.ParticipationID == winner.String
		raffles = append(raffles, summary)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read device raffles", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.GetMyRafflesResponse{
		Raffles: raffles,
	})
}

// GetNotifications handles GET /devices/notifications
// Returns the draw notifications queued for this device, newest first
func (h *DeviceHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	deviceID := h.lookupDevice(w, r)
	if deviceID == "" {
		return
	}

	rows, err := h.db.Query(`
		SELECT id, raffle_id, kind, message, created_at
		FROM notification
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, deviceID)
	if err != nil {
		slog.Error("failed to query notifications", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RaffleID, &n.Kind, &n.Message, &n.CreatedAt); err != nil {
			slog.Error("failed to scan notification", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		notifications = append(notifications, n)
	}

	middleware.JSONResponse(w, http.StatusOK, models.NotificationsResponse{
		Notifications: notifications,
	})
}

// GetOrCreateDevice resolves the X-Device-UUID header for raffle creation
// and entry, creating a web device when the header is new. It returns ""
// when the request carries no header.
func GetOrCreateDevice(db *sql.DB, r *http.Request) (string, error) {
	deviceUUID := r.Header.Get("X-Device-UUID")
	if deviceUUID == "" {
		return "", nil
	}

	now := time.Now().UTC()
	deviceID, err := findDevice(db, deviceUUID)
	if err == nil {
		_, _ = db.Exec(`UPDATE device SET last_seen_at = $1 WHERE id = $2`, now, deviceID)
		return deviceID, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	return createDevice(db, deviceUUID, models.PlatformWeb, now)
}

// LinkDeviceToRaffle creates an association between a device and a raffle
func LinkDeviceToRaffle(db *sql.DB, deviceID, raffleID, role string, participationID *string) error {
	if deviceID == "" {
		return nil
	}

	var pid sql.NullString
	if participationID != nil {
		pid = sql.NullString{String: *participationID, Valid: true}
	}

	// Use INSERT ... ON CONFLICT to handle re-linking (e.g., owner enters their own raffle)
	_, err := db.Exec(`
		INSERT INTO device_raffle (device_id, raffle_id, participation_id, role, linked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, raffle_id) DO UPDATE SET
			role = CASE WHEN device_raffle.role = 'owner' THEN 'owner' ELSE EXCLUDED.role END,
			participation_id = COALESCE(device_raffle.participation_id, EXCLUDED.participation_id)
	`, deviceID, raffleID, pid, role, time.Now().UTC())

	return err
}

func isValidPlatform(platform string) bool {
	switch platform {
	case models.PlatformIOS, models.PlatformMacOS, models.PlatformAndroid, models.PlatformWeb:
		return true
	}
	return false
}
