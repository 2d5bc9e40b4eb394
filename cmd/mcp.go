package main

import (
	"context"

	"github.com/spf13/cobra"
)

func mcpCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP stdio (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), *configPath)
		},
	}
}

func runMCP(ctx context.Context, configPath string) error {
	a, err := bootstrap(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close resources")
		}
	}()

	server, err := a.newMCPServer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	schedulerDone := a.startScheduler(ctx)

	serverErrChan := make(chan error, 1)
	go func() {
		a.logger.Info().Msg("Starting MCP server on stdio")
		serverErrChan <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Received shutdown signal")
	case err = <-serverErrChan:
		if err != nil {
			a.logger.Error().Err(err).Msg("MCP server error")
		}
	}

	cancel()
	if schedulerDone != nil {
		<-schedulerDone
	}

	a.logger.Info().Msg("Shutdown complete")
	return err
}
