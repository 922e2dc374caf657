package config

import (
	"errors"
	"strconv"
	"time"

	platform "github.com/example/threadkit/internal/platform/config"
)

type Config struct {
	platform.AppConfig
	DatabaseURL string
	RedisURL    string
	// CountTTL bounds how long a cached comment count is served.
	CountTTL  time.Duration
	JWTSecret string
	// NATSURL enables count update publishing when set.
	NATSURL string
	// NATSJetStream publishes through JetStream instead of core NATS.
	NATSJetStream bool
	// Write rate limit per caller.
	WriteRate  float64
	WriteBurst int
}

func Load() (Config, error) {
	app, err := platform.Load()
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		AppConfig:     app,
		DatabaseURL:   platform.String("DATABASE_URL", ""),
		RedisURL:      platform.String("REDIS_URL", ""),
		CountTTL:      platform.Duration("COMMENT_COUNT_TTL", 5*time.Minute),
		JWTSecret:     platform.String("JWT_SECRET", ""),
		NATSURL:       platform.String("NATS_URL", ""),
		NATSJetStream: platform.Bool("NATS_JETSTREAM", false),
		WriteRate:     2,
		WriteBurst:    platform.Int("WRITE_RATE_BURST", 10),
	}
	if v := platform.String("WRITE_RATE_PER_SEC", ""); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return Config{}, errors.New("WRITE_RATE_PER_SEC must be a positive number")
		}
		cfg.WriteRate = r
	}
	if cfg.JWTSecret == "" && cfg.IsProduction() {
		return Config{}, errors.New("JWT_SECRET is required in production")
	}
	return cfg, nil
}
