package main

import (
	"context"
	"fmt"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/spf13/cobra"
)

// One-shot versions of the scheduled passes, for cron-from-outside
// setups and for poking the system by hand.

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one timeout sweep pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			notifier, err := alerts.New(cfg.Alerts)
			if err != nil {
				return err
			}
			mgr := buildManager(cfg, gormDB, notifier)
			stats, err := mgr.SweepTimeouts(context.Background(), cfg.Distribution.SweepBatchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Swept %d expired attempt(s), %d escalated\n", stats.Processed, stats.Escalated)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	return cmd
}

func newDeliverCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Run one delivery queue pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			notifier, err := alerts.New(cfg.Alerts)
			if err != nil {
				return err
			}
			worker := buildWorker(cfg, gormDB, notifier)
			stats, err := worker.RunOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d message(s): %d failed, %d dead-lettered\n",
				stats.Processed, stats.Failed, stats.DeadLettered)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check every active channel instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			notifier, err := alerts.New(cfg.Alerts)
			if err != nil {
				return err
			}
			monitor := buildMonitor(cfg, gormDB, notifier)
			results, err := monitor.RunOnce(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No active channel instances")
				return nil
			}
			for _, r := range results {
				line := fmt.Sprintf("%-20s %s", r.Instance, r.Status)
				if r.AutoReconnectAttempted {
					line += " (restart issued)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	return cmd
}
