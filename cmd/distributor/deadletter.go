package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/homelead/distributor/internal/audit"
	"github.com/homelead/distributor/internal/delivery"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newDeadLetterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and resend dead-lettered messages",
	}

	cmd.AddCommand(newDeadLetterListCmd())
	cmd.AddCommand(newDeadLetterResendCmd())
	return cmd
}

func newDeadLetterListCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			letters, err := audit.ListDeadLetters(gormDB, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(letters) == 0 {
				fmt.Fprintln(out, "No dead letters")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-8s %-18s %-9s %s\n", "ID", "MSG", "TARGET", "ATTEMPTS", "ERROR")
			for _, dl := range letters {
				fmt.Fprintf(out, "%-6d %-8d %-18s %-9d %s\n", dl.ID, dl.MessageID, dl.TargetAddress, dl.Attempts, dl.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows to show")
	return cmd
}

func newDeadLetterResendCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "resend <message-id>",
		Short: "Requeue a dead-lettered message for delivery",
		Long:  "Resets the failed message to pending with a fresh attempt budget. This is the only path back from the dead-letter store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid message id %q", args[0])
			}
			return runDeadLetterResend(cmd, configPath, uint(id), yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "distributor.yaml", "path to config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDeadLetterResend(cmd *cobra.Command, configPath string, messageID uint, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	if !skipConfirm {
		// Only prompt when a human is attached; scripts must pass --yes.
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("stdin is not a terminal; pass --yes to resend message %d", messageID)
		}
		if !confirmResend(cmd, messageID) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := delivery.Resend(gormDB, messageID); err != nil {
		return err
	}
	fmt.Fprintf(out, "Message %d requeued for delivery\n", messageID)
	return nil
}

func confirmResend(cmd *cobra.Command, messageID uint) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "Message %d will be resent to its target address.\n", messageID)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
