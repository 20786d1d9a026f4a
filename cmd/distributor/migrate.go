package main

import (
	"fmt"

	"github.com/homelead/distributor/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate database tables and seed defaults",
		Long:  "Creates or updates all tables and seeds the scoring weights row if missing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedScoringSettings(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Scoring weights seeded")
	return nil
}
