// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Draw API server.

Quickly Draw runs raffles with a provably fair draw. Before entries close
the server publishes a SHA-256 commitment to a random secret; the draw
shuffles the entries with a seed derived from the raffle, the draw moment,
every ticket code and that secret, and afterwards the secret is revealed so
anyone can replay the draw (see cmd/drawverify).

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL="file:draw.db" go run main.go

Or with flags:

	go run main.go -p 3318 -t postgres -d "postgres://..."

A .env file in the working directory is read as well.

# Configuration

Required settings:

  - DATABASE_URL (-d): Database connection string
  - ADMIN_KEY_SALT (-admin-salt): Secret for admin key HMAC
  - RAFFLE_SLUG_SALT (-slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - ADMIN_TOKEN (-admin-token): Administrator token
  - DRAW_COUNTDOWN (-countdown): Delay after capacity is reached (default: 5m)
  - SWEEP_SCHEDULE (-sweep): Cron spec for the due-draw sweep (default: @every 30s)

# Architecture

  - draw: Commitment, seed, shuffle and replay; no I/O
  - engine: Lifecycle, draw orchestration, sweep scheduler, notifications
  - handlers: HTTP request handlers (raffles, participations, draw, devices)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Driver selection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
