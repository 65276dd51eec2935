// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-draw/auth"
	"github.com/danielhkuo/quickly-draw/cliparse"
	"github.com/danielhkuo/quickly-draw/db"
)

// sqliteOptions match what the server expects from a sqlite DSN: a busy
// timeout so writers queue instead of failing, enforced foreign keys, and
// write locks taken at BEGIN.
const sqliteOptions = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite&_txlock=immediate"

// SetupTestDB creates a fresh sqlite database file with the full schema.
// It is closed automatically when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "test.db") + sqliteOptions
	conn, err := db.Open(context.Background(), db.TypeSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseURL:      "file::memory:",
		DatabaseType:     db.TypeSQLite,
		AdminKeySalt:     "test-admin-salt",
		RaffleSlugSalt:   "test-slug-salt",
		AdminToken:       "test-admin-token",
		DrawCountdown:    5 * time.Minute,
		SweepSchedule:    "@every 30s",
		SweepConcurrency: 4,
		BaseURL:          "http://localhost:3318",
	}
}

// CreateTestRaffle creates a raffle in the database and returns its ID, admin
// key and share slug. A capacity of 0 means unlimited. Every status except
// draft gets a share slug.
func CreateTestRaffle(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string, capacity int) (raffleID, adminKey, shareSlug string) {
	t.Helper()

	raffleID, _ = auth.GenerateID(16)
	adminKey = auth.GenerateAdminKey(raffleID, cfg.AdminKeySalt)

	var slug *string
	if status != "draft" {
		s := auth.GenerateShareSlug(raffleID, cfg.RaffleSlugSalt)
		slug = &s
		shareSlug = s
	}

	var capacityArg *int
	if capacity > 0 {
		capacityArg = &capacity
	}

	_, err := conn.Exec(`
		INSERT INTO raffle (id, title, description, owner_name, status, capacity, share_slug, created_at)
		VALUES ($1, 'Test Raffle', 'A test raffle', 'TestOwner', $2, $3, $4, $5)
	`, raffleID, status, capacityArg, slug, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test raffle: %v", err)
	}

	return raffleID, adminKey, shareSlug
}

// AddTestParticipation enters a ticket directly, bypassing the capacity
// trigger, and returns the participation ID and holder token.
func AddTestParticipation(t *testing.T, conn *sql.DB, raffleID, ticketCode string) (participationID, holderToken string) {
	t.Helper()

	ticketID, _ := auth.GenerateID(12)
	participationID, _ = auth.GenerateID(12)
	holderToken, _ = auth.GenerateHolderToken()
	now := time.Now().UTC()

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(`
		UPDATE raffle SET participant_count = participant_count + 1
		WHERE id = $1
		RETURNING participant_count
	`, raffleID).Scan(&seq); err != nil {
		t.Fatalf("Failed to bump participant count: %v", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO ticket (id, raffle_id, code, holder_name, holder_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ticketID, raffleID, ticketCode, "Holder "+ticketCode, holderToken, now); err != nil {
		t.Fatalf("Failed to create test ticket: %v", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO participation (id, raffle_id, ticket_id, seq, created_at, is_winner)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, participationID, raffleID, ticketID, seq, now, false); err != nil {
		t.Fatalf("Failed to create test participation: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit test participation: %v", err)
	}

	return participationID, holderToken
}

// SetRaffleStatus forces a raffle into a status, optionally with a draw time.
func SetRaffleStatus(t *testing.T, conn *sql.DB, raffleID, status string, drawAt *time.Time) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE raffle SET status = $1, draw_at = $2 WHERE id = $3`, status, drawAt, raffleID); err != nil {
		t.Fatalf("Failed to set raffle status: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
