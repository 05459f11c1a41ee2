// Command fleetroute solves vehicle routing runs and serves them over HTTP.
//
//	fleetroute serve  [-config file]             run the HTTP API
//	fleetroute solve  [-config file] [flags]     solve one generated instance
//	fleetroute watch  [-addr url] [-token t]     start a run and stream its events
//	fleetroute token  [-role r] [-sub s] [-ttl d] issue an API token
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"fleetroute/internal/api"
	"fleetroute/internal/auth"
	"fleetroute/internal/buildinfo"
	"fleetroute/internal/config"
	"fleetroute/internal/events"
	"fleetroute/internal/metrics"
	"fleetroute/internal/runner"
	"fleetroute/internal/store"
	"fleetroute/internal/webhooks"
)

const usage = `usage: fleetroute <serve|solve|watch|token|version> [flags]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fleetroute:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "solve":
		return solve(ctx, args[1:], stdout, stderr)
	case "watch":
		return watch(ctx, args[1:], stdout)
	case "token":
		return token(args[1:], stdout)
	case "version":
		_, err := fmt.Fprintln(stdout, buildinfo.Get())
		return err
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}

// deps are the service dependencies selected by the configuration.
type deps struct {
	store  store.Store
	broker events.Broker
	close  []func() error
}

func (d *deps) Close() {
	for i := len(d.close) - 1; i >= 0; i-- {
		_ = d.close[i]()
	}
}

// openDeps uses Postgres when DATABASE_URL is set and Redis when REDIS_URL
// is set, and in-memory implementations otherwise. A webhook URL adds
// run notifications on top of the broker.
func openDeps(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*deps, error) {
	d := &deps{store: store.NewMemory(), broker: events.NewMemory()}
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		d.store = pg
		d.close = append(d.close, pg.Close)
		log.Info("[store] using postgres")
	}
	if cfg.RedisURL != "" {
		rb, err := events.NewRedis(ctx, cfg.RedisURL, log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		d.broker = rb
		d.close = append(d.close, rb.Close)
		log.Info("[events] using redis")
	}
	if cfg.Webhook.URL != "" {
		n := webhooks.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.MaxAttempts, log)
		n.Start(context.WithoutCancel(ctx))
		d.broker = n.Wrap(d.broker)
		d.close = append(d.close, n.Close)
		log.WithField("url", cfg.Webhook.URL).Info("[webhooks] notifying")
	}
	return d, nil
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	path := fs.String("config", os.Getenv("FLEETROUTE_CONFIG"), "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	log := cfg.Logger()
	metrics.RegisterDefault()

	d, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()
	verifier, err := auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.Secret)
	if err != nil {
		return err
	}
	r := runner.New(d.store, d.broker, cfg, log)
	s := &api.Server{Runner: r, Store: d.store, Broker: d.broker, Auth: verifier, Config: cfg, Log: log}

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.WithFields(logrus.Fields{"addr": cfg.API.Addr, "version": buildinfo.Get().String(), "auth": verifier.Mode()}).
		Info("[api] listening")

	select {
	case err := <-errc:
		r.Shutdown()
		return err
	case <-ctx.Done():
	}
	log.Info("[api] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(sctx)
	r.Shutdown()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
