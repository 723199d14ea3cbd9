package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestro-ai/maestro/pkg/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runServe(cmd.Context(), configDir)
		},
	}
}

func runServe(ctx context.Context, configDir string) error {
	a, err := buildApp(ctx, configDir)
	if err != nil {
		return err
	}
	defer a.close()

	server := api.NewServer(a.orch, a.auth, a.store, a.logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + a.cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info("Shutdown signal received", "signal", sig.String())
	}

	// Let active runs finish before taking the HTTP surface down.
	a.orch.Shutdown(a.cfg.Runner.GracefulShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", "error", err)
	}

	a.logger.Info("Shutdown complete")
	return nil
}
