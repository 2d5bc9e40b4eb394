package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksred/remind-me/internal/api"

	// Import swagger docs
	_ "github.com/ksred/remind-me/docs"
)

func httpCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the local REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(cmd.Context(), *configPath, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides http.port)")

	return cmd
}

func runHTTP(ctx context.Context, configPath string, port int) error {
	a, err := bootstrap(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	if port > 0 {
		a.cfg.HTTP.Port = port
	}

	mcpServer, err := a.newMCPServer()
	if err != nil {
		return err
	}

	server, err := api.NewServer(a.cfg, a.db, a.taskService, mcpServer, a.logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	schedulerDone := a.startScheduler(ctx)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(a.cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Received shutdown signal")
	case err = <-serverErrChan:
		a.logger.Error().Err(err).Msg("HTTP server error")
	}

	a.logger.Info().Msg("Starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error().Err(shutdownErr).Msg("Failed to gracefully shutdown HTTP server")
	}
	if schedulerDone != nil {
		<-schedulerDone
	}

	a.logger.Info().Msg("Shutdown complete")
	return err
}
