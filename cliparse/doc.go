// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

	CLI flag > process environment > .env file > default

The .env file in the working directory is optional. Environment variables
are mapped onto Config with struct tags (github.com/caarlos0/env).

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Database connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - AdminKeySalt: Secret for admin key HMAC (required)
  - RaffleSlugSalt: Secret for share slug generation (required)
  - AdminToken: Administrator token accepted on every raffle (optional)
  - DrawCountdown: Delay between reaching capacity and the draw (default: 5m)
  - SweepSchedule: Cron spec for the due-draw sweep (default: @every 30s)
  - SweepConcurrency: Raffles drawn in parallel per sweep (default: 4)
  - BaseURL: Public base URL for share links

# CLI Flags

	-p                 Server port
	-d                 Database URL
	-t                 Database type
	-base-url          Public base URL
	-admin-salt        Admin key salt
	-slug-salt         Raffle slug salt
	-admin-token       Administrator token
	-countdown         Draw countdown
	-sweep             Sweep cron spec
	-sweep-concurrency Sweep concurrency

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, BASE_URL, ADMIN_KEY_SALT,
	RAFFLE_SLUG_SALT, ADMIN_TOKEN, DRAW_COUNTDOWN, SWEEP_SCHEDULE,
	SWEEP_CONCURRENCY
*/
package cliparse
