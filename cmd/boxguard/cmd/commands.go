package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/boxguard/internal/store"
	"github.com/spf13/cobra"
)

// commandsCmd prints the audit log.
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List recently emitted actuator commands from the audit log",
	Long: `Read the SQLite audit log written by "run" and "replay" and print the most
recent actuator commands, newest first.

Examples:
  boxguard commands --store boxguard.db
  boxguard commands --limit 10 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		path := cfg.Store.Path
		if cmd.Flags().Changed("store") {
			path, _ = cmd.Flags().GetString("store")
		}
		if path == "" {
			return errors.New("no audit store configured (set store.path or --store)")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		events, err := st.RecentCommands(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		}

		if len(events) == 0 {
			_, _ = fmt.Fprintln(out, "No commands recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "AT\tSEQ\tCOMMAND\tTRANSITION\tLABELS\tDELIVERED")
		for _, ev := range events {
			delivered := "yes"
			if !ev.Delivered {
				delivered = "no: " + ev.Error
			}
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s -> %s\t%s\t%s\n",
				ev.At.Local().Format(time.DateTime), ev.Seq, ev.Command,
				ev.FromState, ev.ToState, strings.Join(ev.Labels, ","), delivered)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(commandsCmd)
	commandsCmd.Flags().Int("limit", store.DefaultRecentLimit, "number of entries to show")
	commandsCmd.Flags().String("store", "", "SQLite audit log path")
	commandsCmd.Flags().Bool("json", false, "print entries as JSON")
}
