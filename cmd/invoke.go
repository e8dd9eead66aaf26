package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vcmd/app"
	"github.com/kilianp07/vcmd/core/catalog"
	"github.com/kilianp07/vcmd/core/model"
)

// Exit codes of the invoke command.
const (
	ExitFailure      = 1
	ExitWakeRequired = 2
)

var (
	invokeParams    string
	invokeForceWake bool
	invokeOutput    string
	invokeAny       bool
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <method>",
	Short: "Run one vehicle command and print the outcome",
	Long: `Run one vehicle command through the gateway node, falling back to the
local CLI. Exits 2 when the vehicle must be woken (retry with --force-wake)
and 1 on failure.`,
	Args: cobra.ExactArgs(1),
	RunE: invoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&invokeParams, "params", "p", "", "command parameters as a JSON object")
	invokeCmd.Flags().BoolVar(&invokeForceWake, "force-wake", false, "wake the vehicle if it is asleep")
	invokeCmd.Flags().StringVarP(&invokeOutput, "output", "o", "json", "output format: json or yaml")
	invokeCmd.Flags().BoolVar(&invokeAny, "allow-unlisted", false, "allow methods outside the command catalog")
	rootCmd.AddCommand(invokeCmd)
}

func parseCommand(method, rawParams string, forceWake bool) (model.Command, error) {
	cmd := model.Command{Method: method}
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &cmd.Params); err != nil {
			return cmd, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	if forceWake {
		if cmd.Params == nil {
			cmd.Params = map[string]any{}
		}
		cmd.Params[model.ParamForceWake] = true
	}
	return cmd, nil
}

func exitCode(out model.Outcome) int {
	switch out.Status {
	case model.StatusSuccess:
		return 0
	case model.StatusRequiresWakeConfirmation:
		return ExitWakeRequired
	default:
		return ExitFailure
	}
}

func invoke(c *cobra.Command, args []string) error {
	method := args[0]
	if _, ok := catalog.Lookup(method); !ok && !invokeAny {
		return fmt.Errorf("unknown method %q (see `vcmd commands`, or pass --allow-unlisted)", method)
	}
	command, err := parseCommand(method, invokeParams, invokeForceWake)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withService(ctx, func(svc *app.Service) error {
		out := svc.Dispatch(ctx, command)
		if err := printValue(c.OutOrStdout(), invokeOutput, out); err != nil {
			return err
		}
		if code := exitCode(out); code != 0 {
			return &ExitError{Code: code, Err: out.Err(), Silent: true}
		}
		return nil
	})
}
