package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/facegate/internal/api"
	"github.com/saturnino-fabrica-de-software/facegate/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facegate/internal/auth"
	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/config"
	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
	"github.com/saturnino-fabrica-de-software/facegate/internal/directory"
	"github.com/saturnino-fabrica-de-software/facegate/internal/eventlog"
	"github.com/saturnino-fabrica-de-software/facegate/internal/face"
	"github.com/saturnino-fabrica-de-software/facegate/internal/service"
	"github.com/saturnino-fabrica-de-software/facegate/internal/session"
	"github.com/saturnino-fabrica-de-software/facegate/internal/webhook"
	"github.com/saturnino-fabrica-de-software/facegate/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting Facegate API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("directory", cfg.DirectoryBackend),
		slog.String("extractor", cfg.ExtractorType),
		slog.String("profile", cfg.MatchProfile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Matching profile and extractor
	profile, err := config.LoadProfile(cfg.MatchProfile)
	if err != nil {
		return fmt.Errorf("failed to load match profile: %w", err)
	}
	matcher, err := biometric.NewMatcher(profile)
	if err != nil {
		return fmt.Errorf("failed to create matcher: %w", err)
	}
	extractor, err := face.NewExtractor(cfg, profile)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	// Database (only when a postgres backend is configured)
	var pool *pgxpool.Pool
	var readyChecks []handler.ReadyCheck
	if cfg.UsesPostgres() {
		pool, err = database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		readyChecks = append(readyChecks, handler.ReadyCheck{
			Name:  "database",
			Check: func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
		})
		logger.Info("connected to database")
	}

	// User directory
	var dir directory.Directory
	switch cfg.DirectoryBackend {
	case config.DirectoryPostgres:
		dir = directory.NewPostgresDirectory(pool)
	default:
		fileDir := directory.NewFileDirectory(cfg.UsersFile)
		dir = fileDir
		readyChecks = append(readyChecks, handler.ReadyCheck{
			Name: "directory",
			Check: func(ctx context.Context) error {
				_, err := fileDir.LoadAll(ctx)
				return err
			},
		})
	}

	// Event log sinks
	events := eventlog.Multi{eventlog.NewSlogLog(logger)}
	if cfg.EventLogPath != "" {
		fileLog, err := eventlog.OpenFileLog(cfg.EventLogPath)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer func() { _ = fileLog.Close() }()
		events = append(events, fileLog)
	}
	if cfg.EventLogPostgres {
		events = append(events, eventlog.NewPostgresLog(pool))
	}
	// The notifier outlives the signal so events from sessions cancelled at
	// shutdown still go out.
	var notifier *webhook.Notifier
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()
	notifierDone := make(chan struct{})
	if cfg.WebhookURL != "" {
		notifier = webhook.NewNotifier(webhook.DefaultConfig(cfg.WebhookURL, cfg.WebhookSecret), logger)
		go func() {
			defer close(notifierDone)
			notifier.Run(notifierCtx)
		}()
		events = append(events, notifier)
	} else {
		close(notifierDone)
	}

	// Sessions, with every state change pushed to websocket subscribers
	hub := ws.NewHub()
	manager := session.NewManager(session.ManagerConfig{
		Verify: session.VerifyConfig{
			Deadline:             cfg.VerifyDeadline,
			PollInterval:         cfg.PollInterval,
			MinConfirmConfidence: cfg.ConfirmMinConfidence,
		},
		Enroll: session.EnrollConfig{
			Deadline:            cfg.EnrollDeadline,
			PollInterval:        cfg.PollInterval,
			RequireConfirmation: cfg.EnrollRequireConfirmation,
		},
		Retention: cfg.SessionRetention,
	}, session.Deps{
		Matcher:   matcher,
		Extractor: extractor,
		Directory: dir,
		Events:    events,
		Logger:    logger,
		Observer:  hub.Publish,
	})
	go manager.RunReaper(ctx, reapInterval(cfg.SessionRetention))

	// Accounts
	tokens := auth.NewTokenService(cfg.JWTSecret, "facegate-api", cfg.JWTTTL)
	accounts := service.NewAccountService(dir, tokens, manager, logger)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Version:      version,
		Accounts:     accounts,
		Sessions:     manager,
		Tokens:       tokens,
		Hub:          hub,
		ReadyChecks:  readyChecks,
		RateLimitMax: cfg.RateLimitMax,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown error", slog.Any("error", err))
	}

	stopNotifier()
	<-notifierDone
	if notifier != nil {
		if pending := notifier.Drain(shutdownCtx); pending > 0 {
			logger.Warn("webhook events not delivered", slog.Int("pending", pending))
		}
	}

	logger.Info("server stopped")

	return nil
}

// reapInterval checks for expired sessions a few times per retention period.
func reapInterval(retention time.Duration) time.Duration {
	interval := retention / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}
