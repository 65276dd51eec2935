// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects to the configured database and verifies the connection.
// SQLite allows a single writer, so its pool is limited to one connection.
func Open(ctx context.Context, dbType, url string) (*sql.DB, error) {
	driver, err := driverName(dbType)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == TypeSQLite {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return conn, nil
}

func driverName(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "", TypeSQLite, "sqlite3":
		return TypeSQLite, nil
	case TypePostgres, "postgresql", "pg":
		return TypePostgres, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dbType)
	}
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// DropSchema removes every table created by CreateSchema.
func DropSchema(db *sql.DB) error {
	for _, table := range []string{
		"notification", "device_raffle", "device", "draw_result",
		"participation", "ticket", "raffle",
	} {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

const schema = `
-- Raffles
CREATE TABLE IF NOT EXISTS raffle (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    owner_name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published', 'active', 'ready_to_draw', 'finished', 'cancelled')),
    capacity INTEGER CHECK (capacity IS NULL OR capacity >= 2),
    participant_count INTEGER NOT NULL DEFAULT 0,
    share_slug TEXT UNIQUE,
    draw_at TIMESTAMP,
    drawn_at TIMESTAMP,
    commitment_secret TEXT,
    commitment_hash TEXT,
    winning_participation_id TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_raffle_share_slug ON raffle(share_slug);
CREATE INDEX IF NOT EXISTS idx_raffle_due ON raffle(status, draw_at);

-- Tickets (display code is bound into the draw seed)
CREATE TABLE IF NOT EXISTS ticket (
    id TEXT PRIMARY KEY,
    raffle_id TEXT NOT NULL REFERENCES raffle(id) ON DELETE CASCADE,
    code TEXT NOT NULL,
    holder_name TEXT NOT NULL,
    holder_token TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (raffle_id, code)
);

CREATE INDEX IF NOT EXISTS idx_ticket_holder_token ON ticket(raffle_id, holder_token);

-- Participations
CREATE TABLE IF NOT EXISTS participation (
    id TEXT PRIMARY KEY,
    raffle_id TEXT NOT NULL REFERENCES raffle(id) ON DELETE CASCADE,
    ticket_id TEXT NOT NULL UNIQUE REFERENCES ticket(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    is_winner BOOLEAN NOT NULL DEFAULT FALSE,
    rank INTEGER,
    ip_hash TEXT,
    user_agent TEXT,
    UNIQUE (raffle_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_participation_raffle_id ON participation(raffle_id);

-- Draw audit trail, written in the transaction that finishes the raffle
CREATE TABLE IF NOT EXISTS draw_result (
    raffle_id TEXT PRIMARY KEY REFERENCES raffle(id) ON DELETE CASCADE,
    drawn_at TIMESTAMP NOT NULL,
    commitment_hash TEXT NOT NULL,
    entries TEXT NOT NULL,
    shuffled TEXT NOT NULL,
    ranking TEXT NOT NULL
);

-- Devices that receive draw notifications
CREATE TABLE IF NOT EXISTS device (
    id TEXT PRIMARY KEY,
    device_uuid TEXT NOT NULL UNIQUE,
    platform TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_device_uuid ON device(device_uuid);

CREATE TABLE IF NOT EXISTS device_raffle (
    device_id TEXT NOT NULL REFERENCES device(id) ON DELETE CASCADE,
    raffle_id TEXT NOT NULL REFERENCES raffle(id) ON DELETE CASCADE,
    participation_id TEXT,
    role TEXT NOT NULL DEFAULT 'participant',
    linked_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (device_id, raffle_id)
);

CREATE INDEX IF NOT EXISTS idx_device_raffle_raffle ON device_raffle(raffle_id);

-- Notification outbox
CREATE TABLE IF NOT EXISTS notification (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL REFERENCES device(id) ON DELETE CASCADE,
    raffle_id TEXT NOT NULL REFERENCES raffle(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notification_device ON notification(device_id, created_at);
`
