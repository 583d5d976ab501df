package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/vidstage/internal/catalog"
)

func newStatusCommand(configPath *string) *cobra.Command {
	var logLines int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline run status and catalog summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := openCatalog(*configPath)
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()

			rs, err := d.store.GetRunStatus()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run status: %s\n", rs.Status)
			if rs.LastRun != nil {
				fmt.Fprintf(out, "Last run:   %s (%s ago)\n",
					rs.LastRun.Format(time.RFC3339), time.Since(*rs.LastRun).Round(time.Second))
				fmt.Fprintf(out, "Processed:  %d items\n", rs.ProcessedItems)
			}
			for _, e := range rs.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}

			fmt.Fprintln(out, "\nCatalog:")
			tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			for _, status := range []catalog.MediaStatus{
				catalog.StatusInactive,
				catalog.StatusTrailer,
				catalog.StatusReady,
				catalog.StatusNoVideo,
				catalog.StatusError,
			} {
				items, err := d.store.ListMediaByStatus(status)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "  %s\t%d\n", status, len(items))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if logLines > 0 {
				logs, err := d.store.RecentLogs(logLines)
				if err != nil {
					return err
				}
				if len(logs) > 0 {
					fmt.Fprintln(out, "\nRecent activity:")
					for _, e := range logs {
						fmt.Fprintf(out, "  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Message)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&logLines, "logs", "n", 10, "recent log entries to show (0 to hide)")
	return cmd
}
