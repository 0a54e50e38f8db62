package rewardd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/core/events"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability/logging"
	telemetry "github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/observability/otel"
	"github.com/Tolani-Corp/TolaniEcosystemDAO-sub001/services/rewardd/audit"
)

// Main initialises and runs the reward daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/rewardd/config.yaml", "path to rewardd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("REWARD_ENV"))
	logger := logging.SetupWithOptions("rewardd", env, logging.Options{
		Level:      parseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromEnv(telemetry.Config{
		ServiceName: "rewardd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	}))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := OpenDatabase(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	hub := NewHub()
	emitters := events.MultiEmitter{hub, observability.NewEventMetrics(nil)}

	var store *audit.Store
	if cfg.Audit.Driver != "" {
		auditDB, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			return err
		}
		store, err = audit.NewStore(auditDB, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		emitters = append(emitters, store)
	}

	ctx := context.Background()
	engines, err := NewEngines(ctx, db, EngineOptions{
		Treasury:      cfg.Treasury,
		Emitter:       emitters,
		SessionMaxTTL: cfg.Session.MaxTTL.Duration,
	})
	if err != nil {
		return err
	}

	if cfg.CatalogPath != "" {
		catalog, err := LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		if err := catalog.Apply(ctx, engines); err != nil {
			return err
		}
		logger.Info("catalog applied",
			slog.String("component", "catalog"),
			slog.Int("campaigns", len(catalog.Campaigns)),
			slog.Int("pools", len(catalog.Pools)))
	}

	for _, module := range pausableModules {
		observability.Rewardd().SetPause(module, engines.Pauses.IsPaused(ctx, module))
	}

	authenticator, err := NewAuthenticator(cfg.Auth, logger)
	if err != nil {
		return err
	}
	server, err := NewServer(ServerOptions{
		Engines:       engines,
		Hub:           hub,
		Audit:         store,
		Authenticator: authenticator,
		RateLimiter:   NewRateLimiter(cfg.RateLimit),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("rewardd listening", slog.String("addr", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
