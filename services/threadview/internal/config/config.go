package config

import (
	"errors"
	"fmt"
	"time"

	platform "github.com/example/threadkit/internal/platform/config"
	"github.com/example/threadkit/internal/thread"
)

type Config struct {
	APIURL   string
	PostID   string
	LogLevel string
	Timeout  time.Duration
	// Order is thread.OrderNewest or thread.OrderOldest.
	Order string

	// AuthToken is used as is. Without it a token is signed for the viewer
	// with JWTSecret.
	AuthToken    string
	JWTSecret    string
	ViewerID     string
	ViewerHandle string
	ViewerAvatar string

	// NATSURL enables the watch command.
	NATSURL string

	CBFailureThreshold uint32
	CBTimeout          time.Duration
	MaxRetries         int
}

func Load() (Config, error) {
	if err := platform.LoadDotEnv(); err != nil {
		return Config{}, err
	}
	cfg := Config{
		APIURL:             platform.String("COMMENTS_API_URL", "http://localhost:8080"),
		PostID:             platform.String("POST_ID", ""),
		LogLevel:           platform.String("LOG_LEVEL", "warn"),
		Timeout:            platform.Duration("REQUEST_TIMEOUT", 10*time.Second),
		AuthToken:          platform.String("AUTH_TOKEN", ""),
		JWTSecret:          platform.String("JWT_SECRET", ""),
		ViewerID:           platform.String("VIEWER_ID", ""),
		ViewerHandle:       platform.String("VIEWER_HANDLE", ""),
		ViewerAvatar:       platform.String("VIEWER_AVATAR", ""),
		NATSURL:            platform.String("NATS_URL", ""),
		CBFailureThreshold: uint32(platform.Int("CB_FAILURE_THRESHOLD", 5)),
		CBTimeout:          platform.Duration("CB_TIMEOUT", 30*time.Second),
		MaxRetries:         platform.Int("MAX_RETRIES", 2),
	}
	order, err := ParseOrder(platform.String("THREAD_ORDER", "newest"))
	if err != nil {
		return Config{}, err
	}
	cfg.Order = order
	if cfg.PostID == "" {
		return Config{}, errors.New("POST_ID is required")
	}
	if cfg.AuthToken == "" && cfg.JWTSecret != "" && cfg.ViewerID == "" {
		return Config{}, errors.New("VIEWER_ID is required to sign a token with JWT_SECRET")
	}
	if cfg.ViewerHandle == "" {
		cfg.ViewerHandle = cfg.ViewerID
	}
	return cfg, nil
}

// ParseOrder maps newest/oldest (or the service's desc/asc) to a list order.
func ParseOrder(s string) (string, error) {
	switch s {
	case "newest", thread.OrderNewest:
		return thread.OrderNewest, nil
	case "oldest", thread.OrderOldest:
		return thread.OrderOldest, nil
	}
	return "", fmt.Errorf("order %q: want newest or oldest", s)
}
