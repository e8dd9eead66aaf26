package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vcmd/app"
	"github.com/kilianp07/vcmd/infra/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trigger monitor, metrics endpoint and MQTT bridge",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withService(ctx, func(svc *app.Service) error {
			return svc.Run(ctx)
		})
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the vehicle tools over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withService(ctx, func(svc *app.Service) error {
			srv, err := mcp.New(svc.Dispatcher)
			if err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return srv.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, mcpCmd)
}
