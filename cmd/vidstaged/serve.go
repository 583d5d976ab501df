package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(configPath *string) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with scheduled pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDaemon(*configPath)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.qbit.Login(ctx); err != nil {
				// The daemon may come up later; transfers fail per item until then.
				d.log.Warn("torrent daemon login failed", "error", err)
			}

			if err := d.runner.Start(ctx); err != nil {
				return err
			}

			if runNow {
				go func() {
					if err := d.runner.Run(ctx); err != nil {
						d.log.Error("initial run failed", "error", err)
					}
				}()
			}

			d.log.Info("daemon started", "schedule", d.cfg.Pipeline.ScanSchedule)
			<-ctx.Done()

			d.log.Info("shutting down")
			d.runner.Stop()
			d.log.Info("daemon stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "start a pipeline run immediately")
	return cmd
}

func newProcessCommand(configPath *string) *cobra.Command {
	var mediaID int64

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one pipeline batch and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := buildDaemon(*configPath)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.qbit.Login(ctx); err != nil {
				d.log.Warn("torrent daemon login failed", "error", err)
			}

			if mediaID > 0 {
				m, err := d.store.GetMedia(mediaID)
				if err != nil {
					return fmt.Errorf("media %d: %w", mediaID, err)
				}
				return d.coord.ProcessMedia(ctx, m)
			}
			return d.runner.Run(ctx)
		},
	}
	cmd.Flags().Int64Var(&mediaID, "media-id", 0, "process a single catalog entry instead of a batch")
	return cmd
}
