package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/threadkit/internal/commentclient"
	"github.com/example/threadkit/internal/countevents"
	"github.com/example/threadkit/internal/platform/auth"
	"github.com/example/threadkit/internal/platform/logging"
	"github.com/example/threadkit/internal/platform/natsconn"
	"github.com/example/threadkit/internal/platform/run"
	"github.com/example/threadkit/internal/thread"
	"github.com/example/threadkit/services/threadview/internal/cli"
	"github.com/example/threadkit/services/threadview/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "threadview:", err)
		os.Exit(2)
	}
	global := flag.NewFlagSet("threadview", flag.ContinueOnError)
	order := global.String("order", cfg.Order, "list order: newest or oldest")
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if cfg.Order, err = config.ParseOrder(*order); err != nil {
		fmt.Fprintln(os.Stderr, "threadview:", err)
		os.Exit(2)
	}
	args := global.Args()

	log, err := logging.NewConsole(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	tokens, err := tokenSource(cfg)
	if err != nil {
		log.Error("auth token", zap.Error(err))
		_ = log.Sync()
		os.Exit(2)
	}
	client := commentclient.New(cfg.APIURL, tokens,
		commentclient.WithCircuitBreaker(commentclient.NewBreaker("comments-api", cfg.CBFailureThreshold, cfg.CBTimeout, log)),
		commentclient.WithRetries(cfg.MaxRetries, 0),
		commentclient.WithTimeout(cfg.Timeout),
		commentclient.WithLogger(log),
	)

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: "threadview"})
		if err != nil {
			log.Warn("nats unavailable, watch disabled", zap.Error(err))
		} else {
			defer nc.Close()
		}
	}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		store, err := thread.Open(ctx, client, cfg.PostID,
			thread.WithViewer(thread.Viewer{ID: cfg.ViewerID, Handle: cfg.ViewerHandle, Avatar: cfg.ViewerAvatar}),
			thread.WithOrder(cfg.Order),
			thread.WithListener(thread.ListenerFunc(func(u thread.CountUpdate) {
				log.Debug("comment count", zap.String("post_id", u.PostID), zap.Int("count", u.Count))
			})),
			thread.WithLogger(log),
		)
		if err != nil {
			return fmt.Errorf("open thread %s: %w", cfg.PostID, err)
		}
		defer func() {
			store.Close()
			store.Wait()
		}()

		app := &cli.App{Store: store, Out: os.Stdout}
		if nc != nil {
			app.Watch = natsWatcher(nc, cfg.PostID, log)
		}
		err = app.Run(ctx, args)
		if errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	})
	run.Exit(code)
}

func tokenSource(cfg config.Config) (commentclient.TokenSource, error) {
	if cfg.AuthToken != "" {
		return commentclient.StaticToken(cfg.AuthToken), nil
	}
	if cfg.JWTSecret == "" {
		return nil, nil
	}
	tok, err := auth.JWTSigner{Secret: []byte(cfg.JWTSecret)}.Sign(auth.Identity{
		UserID: cfg.ViewerID,
		Handle: cfg.ViewerHandle,
		Avatar: cfg.ViewerAvatar,
	}, auth.RoleUser)
	if err != nil {
		return nil, err
	}
	return commentclient.StaticToken(tok), nil
}

func natsWatcher(nc *nats.Conn, postID string, log *zap.Logger) cli.Watcher {
	return func(ctx context.Context, fn func(thread.CountUpdate)) error {
		sub, err := countevents.Subscribe(nc, postID, fn, log)
		if err != nil {
			return fmt.Errorf("subscribe count updates: %w", err)
		}
		defer func() { _ = sub.Unsubscribe() }()
		<-ctx.Done()
		return nil
	}
}
