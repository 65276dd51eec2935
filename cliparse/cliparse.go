// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           int    `env:"PORT" envDefault:"3318"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseType   string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	AdminKeySalt   string `env:"ADMIN_KEY_SALT"`
	RaffleSlugSalt string `env:"RAFFLE_SLUG_SALT"`
	BaseURL        string `env:"BASE_URL"`

	// AdminToken authorizes system administrators on every raffle.
	// Empty disables administrator access.
	AdminToken string `env:"ADMIN_TOKEN"`

	// DrawCountdown is the grace window between reaching capacity and the draw.
	DrawCountdown    time.Duration `env:"DRAW_COUNTDOWN" envDefault:"5m"`
	SweepSchedule    string        `env:"SWEEP_SCHEDULE" envDefault:"@every 30s"`
	SweepConcurrency int           `env:"SWEEP_CONCURRENCY" envDefault:"4"`
}

// DotEnvFile is loaded before the environment is read. Variables already
// set in the process environment win.
var DotEnvFile = ".env"

// ParseFlags builds the config. Precedence: CLI flag > environment > .env > default.
func ParseFlags(args []string) (Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	flags := flag.NewFlagSet("quickly-draw", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	flags.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	flags.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	flags.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Public base URL used in share links")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.StringVar(&cfg.AdminKeySalt, "admin-salt", cfg.AdminKeySalt, "Admin key salt (prefer env)")
	flags.StringVar(&cfg.RaffleSlugSalt, "slug-salt", cfg.RaffleSlugSalt, "Raffle slug salt (prefer env)")
	flags.StringVar(&cfg.AdminToken, "admin-token", cfg.AdminToken, "Administrator token (prefer env)")

	// Draw timing
	flags.DurationVar(&cfg.DrawCountdown, "countdown", cfg.DrawCountdown, "Delay between reaching capacity and the draw")
	flags.StringVar(&cfg.SweepSchedule, "sweep", cfg.SweepSchedule, "Cron spec for the due-draw sweep")
	flags.IntVar(&cfg.SweepConcurrency, "sweep-concurrency", cfg.SweepConcurrency, "Raffles drawn in parallel per sweep")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	// Secrets - MUST be provided
	if cfg.AdminKeySalt == "" {
		return Config{}, errors.New("ADMIN_KEY_SALT required")
	}
	if cfg.RaffleSlugSalt == "" {
		return Config{}, errors.New("RAFFLE_SLUG_SALT required")
	}

	if cfg.DrawCountdown <= 0 {
		return Config{}, errors.New("draw countdown must be positive")
	}
	if cfg.SweepConcurrency <= 0 {
		return Config{}, errors.New("sweep concurrency must be positive")
	}

	return cfg, nil
}
