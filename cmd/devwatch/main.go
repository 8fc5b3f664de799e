package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/github"
	"github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/npm"
	sqliteadapter "github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driven/sqlite"
	httphandler "github.com/jonmartin721/devwatch-github-sub000/internal/adapter/driving/http"
	"github.com/jonmartin721/devwatch-github-sub000/internal/application"
	"github.com/jonmartin721/devwatch-github-sub000/internal/config"
	"github.com/jonmartin721/devwatch-github-sub000/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	settingStore := sqliteadapter.NewSettingRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	registryClient := npm.NewClient()

	// 6. Initialize the state store.
	store := application.NewStore(settingStore)
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	// 7. Resolve credentials: a stored token takes priority over the env var.
	token := cfg.GitHubToken
	if stored, err := credentialStore.GetToken(ctx); errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Info("credential storage disabled, set DEVWATCH_SECRET_KEY to enable it")
	} else if err != nil {
		slog.Warn("stored credentials unavailable", "error", err)
	} else if stored != "" {
		token = stored
	}

	newClient := func(token string) driven.GitHubClient {
		return githubadapter.NewClient(token)
	}

	var ghClient driven.GitHubClient
	var username string
	if token != "" {
		client := githubadapter.NewClient(token)
		username, err = client.ValidateToken(ctx)
		if err != nil {
			slog.Warn("github token validation failed, polling disabled until credentials are updated", "error", err)
		} else {
			ghClient = client
			slog.Info("github client ready", "username", username)
		}
	} else {
		slog.Info("no github credentials configured, polling disabled until credentials are provided via the API")
	}

	provider := application.NewGitHubClientProvider(ghClient, username)

	// 8. Create services and start the poll loop. The stored checkInterval
	// preference drives the polling cadence; cfg.PollInterval is the
	// fallback when the preference is unset.
	watchSvc := application.NewWatchService(store, provider, registryClient)
	pollSvc := application.NewPollService(store, provider, cfg.PollInterval)
	go pollSvc.Start(ctx)

	// 9. Create the HTTP handler and server.
	apiHandler := httphandler.NewHandler(store, watchSvc, pollSvc, provider, credentialStore, newClient, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("devwatch started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
		"watched_repos", len(store.Snapshot().WatchedRepos),
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
