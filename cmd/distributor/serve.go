package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/db"
	"github.com/homelead/distributor/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and background schedulers",
		Long:  "Starts the HTTP API plus the periodic timeout sweeper, delivery worker, and channel health monitor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedScoringSettings(gormDB); err != nil {
		return err
	}

	notifier, err := alerts.New(cfg.Alerts)
	if err != nil {
		return err
	}
	mgr := buildManager(cfg, gormDB, notifier)
	worker := buildWorker(cfg, gormDB, notifier)
	monitor := buildMonitor(cfg, gormDB, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	sched := cron.New()
	_, err = sched.AddFunc(cfg.Schedules.Sweep, func() {
		stats, err := mgr.SweepTimeouts(ctx, cfg.Distribution.SweepBatchSize)
		if err != nil {
			log.Printf("serve: timeout sweep: %v", err)
			return
		}
		if stats.Processed > 0 {
			log.Printf("serve: swept %d expired attempt(s), %d escalated", stats.Processed, stats.Escalated)
		}
	})
	if err != nil {
		return fmt.Errorf("serve: schedule sweep %q: %w", cfg.Schedules.Sweep, err)
	}

	_, err = sched.AddFunc(cfg.Schedules.Delivery, func() {
		stats, err := worker.RunOnce(ctx)
		if err != nil {
			log.Printf("serve: delivery pass: %v", err)
			return
		}
		if stats.Processed > 0 {
			log.Printf("serve: delivered %d message(s), %d failed, %d dead-lettered",
				stats.Processed-stats.Failed, stats.Failed, stats.DeadLettered)
		}
	})
	if err != nil {
		return fmt.Errorf("serve: schedule delivery %q: %w", cfg.Schedules.Delivery, err)
	}

	_, err = sched.AddFunc(cfg.Schedules.Health, func() {
		if _, err := monitor.RunOnce(ctx); err != nil {
			log.Printf("serve: health check: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("serve: schedule health %q: %w", cfg.Schedules.Health, err)
	}

	sched.Start()
	defer sched.Stop()

	if port <= 0 {
		port = cfg.Server.Port
	}
	return server.Start(ctx, server.StartOpts{
		DB:      gormDB,
		Manager: mgr,
		Worker:  worker,
		Monitor: monitor,
		Port:    port,
		Out:     out,
	})
}
