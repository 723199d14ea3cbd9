package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/artifacts"
	"github.com/maestro-ai/maestro/pkg/auth"
	"github.com/maestro-ai/maestro/pkg/config"
	"github.com/maestro-ai/maestro/pkg/envelope"
	"github.com/maestro-ai/maestro/pkg/executor"
	"github.com/maestro-ai/maestro/pkg/orchestrator"
	"github.com/maestro-ai/maestro/pkg/progress"
	"github.com/maestro-ai/maestro/pkg/runner"
	"github.com/maestro-ai/maestro/pkg/store"
)

// app holds the wired components shared by serve and the session
// subcommands. Both surfaces go through the same command dispatcher.
type app struct {
	cfg    *config.Config
	store  store.Store
	orch   *orchestrator.Orchestrator
	auth   *auth.Service
	logger *slog.Logger
}

// buildApp loads configuration and wires the full component graph.
func buildApp(ctx context.Context, configDir string) (*app, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file loaded", "path", envPath, "error", err)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st = pg
		logger.Info("Connected to PostgreSQL")
	} else {
		st = store.NewMemoryStore()
		logger.Warn("No DATABASE_URL configured, using ephemeral in-memory store")
	}

	envLog := envelope.NewLog(cfg.DataDir)
	artStore := artifacts.NewStore(cfg.DataDir)

	var completer agent.Completer
	if cfg.LLM.StubMode() {
		logger.Info("No LLM API key configured, using deterministic stub agents")
		completer = agent.NewStubCompleter()
	} else {
		client, err := agent.NewOpenAIClientFromAPIKey(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		completer = client
	}
	agentRunner := agent.NewRunner(completer, envLog, logger, cfg.LLM.CallTimeout)
	planner := agent.NewPlanner(agentRunner)
	worker := agent.NewWorker(agentRunner)
	reviewer := agent.NewReviewer(agentRunner)

	emitter := progress.NewEmitter(st, logger)
	exec := executor.New(st, emitter, worker, reviewer, artStore,
		cfg.Runner.RedoBudget, cfg.Runner.ReviewerBatchSize, logger)
	bgRunner := runner.New(st, exec, envLog, cfg.Runner.MaxConcurrentSessions, logger)
	orch := orchestrator.New(st, planner, bgRunner, emitter, artStore, logger)

	if err := orch.RecoverOrphans(ctx); err != nil {
		return nil, err
	}

	var sender auth.Sender
	if cfg.SMTP.Host != "" {
		sender = auth.NewSMTPSender(cfg.SMTP)
	} else {
		sender = auth.NewLogSender(logger)
	}
	authSvc := auth.NewService(st, sender, cfg.JWTSigningKey, logger)

	return &app{
		cfg:    cfg,
		store:  st,
		orch:   orch,
		auth:   authSvc,
		logger: logger,
	}, nil
}

// close releases backend resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Error closing store", "error", err)
	}
}
