package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/homelead/distributor/internal/alerts"
	"github.com/homelead/distributor/internal/distribution"
	"github.com/spf13/cobra"
)

func newEnqueueCmd() *cobra.Command {
	var (
		configPath string
		start      bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <lead|visit> <id>",
		Short: "Queue a subject for distribution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid subject id %q", args[1])
			}
			return runEnqueue(cmd, configPath, args[0], uint(id), start)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	cmd.Flags().BoolVar(&start, "start", true, "start distribution immediately after queueing")
	return cmd
}

func runEnqueue(cmd *cobra.Command, configPath, subjectType string, subjectID uint, start bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	notifier, err := alerts.New(cfg.Alerts)
	if err != nil {
		return err
	}
	mgr := buildManager(cfg, gormDB, notifier)

	ctx := context.Background()
	item, err := mgr.Enqueue(ctx, distribution.SubjectRef{Type: subjectType, ID: subjectID})
	if errors.Is(err, distribution.ErrAlreadyQueued) {
		fmt.Fprintf(out, "%s %d is already queued\n", subjectType, subjectID)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued work item %d for %s %d\n", item.ID, subjectType, subjectID)

	if !start {
		return nil
	}
	if err := mgr.Start(ctx, item.ID); err != nil {
		if errors.Is(err, distribution.ErrNoEligibleCandidates) {
			fmt.Fprintf(out, "No eligible agents; work item %d failed\n", item.ID)
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Offer dispatched to the top candidate\n")
	return nil
}
