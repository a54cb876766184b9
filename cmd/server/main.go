// Command server runs the trailhub event coordination backend.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (-config flag, TRAILHUB_CONFIG, ./config.yaml, /etc/trailhub/config.yaml),
// then TRAILHUB_* environment overrides. See pkg/config for the full set.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trailhub/trailhub/pkg/auth"
	"github.com/trailhub/trailhub/pkg/config"
	"github.com/trailhub/trailhub/pkg/storage"
	"github.com/trailhub/trailhub/pkg/storage/memory"
	"github.com/trailhub/trailhub/pkg/storage/postgres"
	"github.com/trailhub/trailhub/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the token signing key. A generated key works for a single
	// instance but invalidates all outstanding tokens on restart.
	key, err := signingKey(cfg.Auth)
	if err != nil {
		return fmt.Errorf("resolving signing key: %w", err)
	}
	if cfg.Auth.SigningKey == "" && cfg.Auth.SigningKeyFile == "" {
		logger.Warn("no signing key configured, generated an ephemeral key",
			"hint", "set auth.signing_key or TRAILHUB_SIGNING_KEY for stable tokens")
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens, err := auth.NewTokenService(key, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	policy := auth.NewPolicy(auth.DefaultRules()...)

	opts := []transport.Option{transport.WithLogger(logger)}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transport.WithMetrics(cfg.Observability.Metrics.Path, promhttp.Handler()))
	}
	api := transport.New(store, hasher, tokens, policy, opts...)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// signingKey decodes the configured HMAC key or generates a fresh one.
// The key never appears in logs or error messages.
func signingKey(cfg config.AuthConfig) ([]byte, error) {
	if cfg.SigningKey == "" {
		return auth.GenerateSigningKey()
	}
	key, err := base64.StdEncoding.DecodeString(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("signing key is not valid base64")
	}
	if len(key) < auth.SigningKeySize {
		return nil, fmt.Errorf("signing key must be at least %d bytes", auth.SigningKeySize)
	}
	return key, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
