package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/continuity-labs/cce/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the AI tool integration server (MCP on stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mcpserver.Version = Version

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := mcpserver.Serve(ctx)
			if ctx.Err() != nil {
				// Signal-driven shutdown is a clean exit.
				return nil
			}
			return err
		},
	}
}
