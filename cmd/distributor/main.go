package main

import (
	"fmt"
	"os"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/channel"
	"github.com/homelead/distributor/internal/config"
	"github.com/homelead/distributor/internal/db"
	"github.com/homelead/distributor/internal/delivery"
	"github.com/homelead/distributor/internal/distribution"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distributor",
		Short: "Lead distribution and reliable delivery service",
		Long:  "Distributor scores broker candidates, escalates offers until one accepts, and drives outbound WhatsApp delivery with retries.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newEnqueueCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newDeliverCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDeadLetterCmd())
	cmd.AddCommand(newAgentCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "distributor %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	d := cfg.Database
	gormDB, err := db.Connect(d.User, d.Password, d.Host, d.Port, d.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// buildManager wires the distribution manager with its collaborators.
func buildManager(cfg *config.Config, gormDB *gorm.DB, notifier alerts.Notifier) *distribution.Manager {
	return distribution.NewManager(distribution.ManagerOpts{
		DB: gormDB,
		Config: distribution.Config{
			MaxAttempts:    cfg.Distribution.MaxAttempts,
			ResponseWindow: cfg.Distribution.ResponseWindow(),
			TemplateKey:    cfg.Distribution.TemplateKey,
		},
		Renderer: distribution.DefaultRenderer{},
		Alerts:   notifier,
	})
}

func buildWorker(cfg *config.Config, gormDB *gorm.DB, notifier alerts.Notifier) *delivery.Worker {
	gateway := channel.NewGateway(cfg.Delivery.SendTimeout())
	return delivery.NewWorker(gormDB, gateway, delivery.WorkerConfig{
		BatchSize:   cfg.Delivery.BatchSize,
		MaxAttempts: cfg.Delivery.MaxAttempts,
		SendTimeout: cfg.Delivery.SendTimeout(),
	}, notifier)
}

func buildMonitor(cfg *config.Config, gormDB *gorm.DB, notifier alerts.Notifier) *channel.Monitor {
	gateway := channel.NewGateway(cfg.Health.CheckTimeout())
	return channel.NewMonitor(gormDB, gateway, cfg.Health.CheckTimeout(), notifier)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
