package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/vcmd/core/catalog"
)

var (
	commandsDirection string
	commandsOutput    string
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the whitelisted vehicle commands",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		entries := catalog.All()
		switch d := catalog.Direction(strings.ToLower(commandsDirection)); d {
		case "":
		case catalog.Read, catalog.Write:
			entries = catalog.ByDirection(d)
		default:
			return fmt.Errorf("direction must be read or write, got %q", commandsDirection)
		}
		if commandsOutput != "table" {
			return printValue(c.OutOrStdout(), commandsOutput, entries)
		}
		tw := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tDIRECTION\tLABEL")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Method, e.Direction, e.Label)
		}
		return tw.Flush()
	},
}

func init() {
	commandsCmd.Flags().StringVarP(&commandsDirection, "direction", "d", "", "filter by read or write")
	commandsCmd.Flags().StringVarP(&commandsOutput, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(commandsCmd)
}
