package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/oauthkit/devicegrant/internal/csrf"
	"github.com/oauthkit/devicegrant/internal/devicegrant"
	"github.com/oauthkit/devicegrant/internal/registry"
	"github.com/oauthkit/devicegrant/internal/scopes"
	"github.com/oauthkit/devicegrant/internal/tokens"
)

// Version is set by the build process.
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().
		Timestamp().
		Str("service", "devicegrantd").
		Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg Config, logger zerolog.Logger) error {
	store, csrfStore, cleanup, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer cleanup()

	clients, err := registry.LoadFile(cfg.ClientsFile)
	if err != nil {
		return fmt.Errorf("loading client registry: %w", err)
	}

	issuer, err := tokens.NewJWTIssuer(tokens.Config{
		Issuer:     cfg.BaseURL,
		Secret:     []byte(cfg.TokenSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("initializing token issuer: %w", err)
	}

	flow := devicegrant.NewFlow(store, clients, scopes.New(), issuer, cfg.BaseURL,
		devicegrant.WithExpiry(cfg.CodeExpiry),
		devicegrant.WithPollInterval(cfg.PollInterval),
		devicegrant.WithBackoff(cfg.BackoffStep, cfg.MaxPollInterval),
		devicegrant.WithLogger(logger),
	)

	csrfManager := csrf.NewManager(csrfStore, []byte(cfg.CSRFSecret), cfg.CSRFTokenExpiry)

	srv, err := newServer(cfg, flow, csrfManager, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	go purgeLoop(purgeCtx, store, cfg.PurgeInterval, cfg.PurgeGrace, logger)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Port).Str("version", Version).Msg("server listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("starting shutdown")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing server")
			}
		}
	}

	return nil
}

// buildStores selects the persistence backend for device code records and
// CSRF tokens. The returned cleanup closes whatever was opened.
func buildStores(cfg Config) (devicegrant.Store, csrf.Store, func(), error) {
	switch cfg.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}

		cleanup := func() { _ = client.Close() }
		return devicegrant.NewRedisStore(client), csrf.NewRedisStore(client), cleanup, nil

	case "sqlite":
		store, err := devicegrant.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.ApplyMigrations(); err != nil {
			_ = store.Close()
			return nil, nil, nil, err
		}
		cleanup := func() { _ = store.Close() }
		return store, csrf.NewMemoryStore(), cleanup, nil

	case "memory":
		return devicegrant.NewMemoryStore(), csrf.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// purgeLoop removes long-expired records on a timer. Operational hygiene
// only: expiry is enforced lazily on every read.
func purgeLoop(ctx context.Context, store devicegrant.Store, interval, grace time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-grace)
			n, err := store.DeleteExpiredBefore(ctx, cutoff)
			if err != nil {
				logger.Error().Err(err).Msg("purging expired device codes")
				continue
			}
			if n > 0 {
				logger.Debug().Int("removed", n).Msg("purged expired device codes")
			}
		}
	}
}
