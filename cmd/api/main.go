package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-triage/internal/application"
	appanalysis "github.com/bryanwahyu/automaton-triage/internal/application/analysis"
	apptasks "github.com/bryanwahyu/automaton-triage/internal/application/tasks"
	apptriage "github.com/bryanwahyu/automaton-triage/internal/application/triage"
	"github.com/bryanwahyu/automaton-triage/internal/config"
	domai "github.com/bryanwahyu/automaton-triage/internal/domain/ai"
	domaintasks "github.com/bryanwahyu/automaton-triage/internal/domain/tasks"
	devinagent "github.com/bryanwahyu/automaton-triage/internal/infra/agent/devin"
	aiclient "github.com/bryanwahyu/automaton-triage/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/automaton-triage/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/automaton-triage/internal/infra/db/postgres"
	ghclient "github.com/bryanwahyu/automaton-triage/internal/infra/github"
	"github.com/bryanwahyu/automaton-triage/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-triage/internal/infra/store/memory"
	minioStore "github.com/bryanwahyu/automaton-triage/internal/infra/storage"
	"github.com/bryanwahyu/automaton-triage/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	// optional task-history database
	var db *sql.DB
	var history domaintasks.History
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return fmt.Errorf("mysql connect error: %w", err)
		}
		history = mysqlp.NewTaskRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return fmt.Errorf("postgres connect error: %w", err)
		}
		history = postgresp.NewTaskRepository(db)
	case "":
		logger.Info("task history database not configured")
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
	if db != nil {
		defer db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	// optional payload/analysis archive
	var archive domaintasks.Archive
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init error: %w", err)
		}
		archive = store
	}

	// collaborators
	github := ghclient.NewClient(cfg.GitHub.Token)
	agent := devinagent.NewClient(cfg.Agent.BaseURL, cfg.Agent.APIKey)

	var llm domai.Client
	if cfg.AI.APIKey != "" {
		llm = aiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	} else {
		logger.Warn("OPENAI_API_KEY not set, analyzer will use rule-based fallback")
	}
	analyzer := appanalysis.NewService(llm, logger)

	// lifecycle + orchestrator
	lifecycle := apptasks.NewService(apptasks.Deps{
		Agent:        agent,
		Tracker:      memory.NewTracker(),
		Notifier:     github,
		History:      history,
		Archive:      archive,
		Analyzer:     analyzer,
		Clock:        application.SystemClock{},
		Logger:       logger,
		PollInterval: time.Duration(cfg.Agent.PollIntervalSeconds) * time.Second,
	})
	triageSvc := apptriage.NewService(lifecycle, github, archive, logger)

	mux := httpserver.NewRouter(triageSvc, history, []byte(cfg.GitHub.WebhookSecret), checkers, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stop:
		logger.Info("shutting down server")
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := lifecycle.Shutdown(ctx2); err != nil {
		logger.Warn("pollers did not stop in time",
			zap.Int("in_flight", lifecycle.InFlight()),
			zap.Error(err),
		)
	}

	logger.Info("server stopped gracefully")
	return nil
}
