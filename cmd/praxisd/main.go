package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/api/rest"
	"github.com/clintrovert/praxis/internal/config"
	"github.com/clintrovert/praxis/internal/github"
	"github.com/clintrovert/praxis/internal/jira"
	"github.com/clintrovert/praxis/internal/repomap"
	"github.com/clintrovert/praxis/internal/tracker"
	"github.com/clintrovert/praxis/internal/validate"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	// Load configuration (PRAXIS_CONFIG file, environment, defaults)
	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Create Jira client
	jiraClient, err := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Username, cfg.Jira.APIToken, logger)
	if err != nil {
		logger.Fatal("failed to create jira client", zap.Error(err))
	}

	// Pick the repository host: hosted API when a token is set, otherwise
	// the local workspace
	var host tracker.RepoHost
	var logins tracker.LoginSource
	if cfg.GitHub.Token != "" {
		githubClient := github.NewClient(cfg.GitHub.Token, logger)
		host = githubClient
		logins = githubClient
	} else {
		host = github.NewLocalHost(cfg.GitHub.WorkspaceDir, logger)
		logger.Info("using local workspace host", zap.String("dir", cfg.GitHub.WorkspaceDir))
	}

	// Create mapping store
	store := repomap.NewStore(cfg.Tracker.MappingPath, logger)

	// Create validation collaborator when credentials are present
	var validator validate.Validator
	if cfg.OpenAI.APIKey != "" {
		validator = validate.NewAIValidator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	}

	// Assemble the tracking engine
	resolver := tracker.NewResolver(cfg.Tracker.UserMapping, logins, logger)
	locator := tracker.NewLocator(store, host, tracker.LocatorConfig{
		DefaultRepository: cfg.Tracker.DefaultRepository,
		DefaultBranch:     cfg.Tracker.DefaultBranch,
		ScanRepoLimit:     cfg.Tracker.ScanRepoLimit,
		ScanCommitLimit:   cfg.Tracker.ScanCommitLimit,
	}, logger)
	matcher := tracker.NewMatcher(host, cfg.Tracker.SinceMargin(), logger)
	engine := tracker.NewTracker(jiraClient, host, resolver, locator, matcher, validator, tracker.Config{
		Workers:        cfg.Tracker.Workers,
		RequestTimeout: cfg.Tracker.RequestTimeout(),
	}, logger)

	// Create REST API handler
	restHandler := rest.NewHandler(engine, jiraClient, store, logger)

	// Setup REST API
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Start REST server
	restAddr := fmt.Sprintf(":%s", cfg.Server.RESTPort)
	restServer := &http.Server{
		Addr:    restAddr,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", restAddr))
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	restServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
