package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/example/threadkit/internal/countevents"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/db"
	"github.com/example/threadkit/internal/platform/httpserver"
	"github.com/example/threadkit/internal/platform/logging"
	"github.com/example/threadkit/internal/platform/natsconn"
	"github.com/example/threadkit/internal/platform/run"
	"github.com/example/threadkit/services/comments/internal/config"
	"github.com/example/threadkit/services/comments/internal/countcache"
	"github.com/example/threadkit/services/comments/internal/handlers"
	"github.com/example/threadkit/services/comments/internal/media"
	"github.com/example/threadkit/services/comments/internal/ratelimit"
	"github.com/example/threadkit/services/comments/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	comments, ready, closePool := initComments(log, cfg)
	if closePool != nil {
		defer closePool()
	}

	counts, err := countcache.New(cfg.RedisURL, cfg.CountTTL, cfg.IsProduction())
	if err != nil {
		log.Error("count cache", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, using in-memory count cache (development only)")
	}

	events := countevents.New(nil, log)
	if cfg.NATSURL != "" {
		// non-fatal if NATS is unavailable
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
		} else {
			defer nc.Close()
			events = countevents.New(nc, log)
			mode := "core"
			if cfg.NATSJetStream {
				js, err := nc.JetStream()
				if err != nil {
					log.Error("nats jetstream, falling back to core publish", zap.Error(err))
				} else {
					events = countevents.NewJetStream(js, log)
					mode = "jetstream"
				}
			}
			log.Info("count updates: nats", zap.String("url", cfg.NATSURL), zap.String("mode", mode))
		}
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, every authenticated request will be rejected")
	}

	deps := handlers.Deps{
		Store:  comments,
		Media:  media.NewStore(0),
		Counts: counts,
		Events: events,
		Logger: log,
	}
	r := handlers.NewRouter(deps, handlers.RouterOptions{
		Verifier:  auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Limiter:   ratelimit.New(cfg.WriteRate, cfg.WriteBurst),
		ReadyFunc: ready,
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initComments selects the Store backend.
// In production (APP_ENV=production) it requires a working Postgres connection
// and terminates the process otherwise.
func initComments(log *zap.Logger, cfg config.Config) (store.Store, func() error, func()) {
	isProd := cfg.IsProduction()

	if cfg.DatabaseURL == "" {
		if isProd {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory comment store (development only)")
		return store.NewMemoryStore(), nil, nil
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory comment store", zap.Error(err))
		return store.NewMemoryStore(), nil, nil
	}

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		log.Error("postgres migrate", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	log.Info("comments store: postgres")
	ready := func() error { return pool.Ping(context.Background()) }
	return pg, ready, pool.Close
}
