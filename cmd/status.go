package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vcmd/app"
	"github.com/kilianp07/vcmd/core/model"
)

var statusOutput string

type statusReport struct {
	Platform     string `json:"platform"`
	Gateway      string `json:"gateway"`
	TokenSet     bool   `json:"token_set"`
	NodeID       string `json:"node_id,omitempty"`
	NodeFound    bool   `json:"node_found"`
	CLIBinary    string `json:"cli_binary"`
	CLIAvailable bool   `json:"cli_available"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway, node and CLI fallback status",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withService(ctx, func(svc *app.Service) error {
			conn := svc.Connection.Resolve()
			id, ok := svc.Nodes.ResolveNodeID(ctx, false)
			return printValue(c.OutOrStdout(), statusOutput, statusReport{
				Platform:     svc.Config.Platform,
				Gateway:      conn.Addr(),
				TokenSet:     conn.Token != "",
				NodeID:       id,
				NodeFound:    ok,
				CLIBinary:    svc.Config.CLI.Binary,
				CLIAvailable: svc.CLI.Available(),
			})
		})
	},
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Re-query the gateway and print the node serving the platform",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withService(ctx, func(svc *app.Service) error {
			id, ok := svc.Nodes.ResolveNodeID(ctx, true)
			if !ok {
				return &ExitError{Code: ExitFailure, Err: errNoNode(svc.Config.Platform)}
			}
			_, err := c.OutOrStdout().Write([]byte(id + "\n"))
			return err
		})
	},
}

func errNoNode(platform string) error {
	return model.Errorf(model.KindNoNodeConnected, "no connected %s node found", platform)
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "json", "output format: json or yaml")
	rootCmd.AddCommand(statusCmd, nodesCmd)
}
