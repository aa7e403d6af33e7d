package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zenibako/cueforge/journal"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal [db]",
		Short: "Print the most recent show log entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Journal.Path
			if len(args) > 0 {
				path = args[0]
			}
			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Entries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Journal is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.At.Local().Format(time.DateTime),
					e.Kind,
					e.Detail,
					e.CueID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"At", "Event", "Detail", "Cue ID"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show (0 for all)")
	return cmd
}
