// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles driver selection and schema creation.

# Connecting

Open picks the driver from the configured database type and pings it:

	conn, err := db.Open(ctx, db.TypeSQLite, "file:draw.db?_pragma=busy_timeout(5000)")

SQLite (modernc.org/sqlite, no cgo) is the default; PostgreSQL uses
github.com/lib/pq. SQLite pools are limited to a single connection.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - raffle: Raffle metadata, lifecycle state, commitment and winner
  - ticket: Ticket codes and holder tokens
  - participation: One entry per ticket, in entry order (seq), with its rank
  - draw_result: The inputs and order of a finished draw, for replay
  - device: Registered devices
  - device_raffle: Links devices to raffles
  - notification: Draw notifications queued for devices

# Relationships

	raffle 1──* ticket 1──1 participation
	raffle 1──1 draw_result
	device *──* raffle (via device_raffle)
	device 1──* notification

All foreign keys use ON DELETE CASCADE.
*/
package db
