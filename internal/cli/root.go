// Package cli holds the modest command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/modest/internal/model"
)

// NewRootCmd builds the modest command. Without a subcommand it opens the
// terminal interface.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "modest",
		Short:         "A small queue-driven mail client",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}

	// Flags
	cmd.PersistentFlags().String("config", model.DefaultConfigPath(), "Config file")
	cmd.PersistentFlags().String("log-level", "info", "Log level, can be one of: debug, info, warn, error")
	cmd.PersistentFlags().String("db", "", "Database path (default from config)")
	cmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.PersistentFlags().Bool("offline", false, "Start with the device offline")

	// Add Subcommands
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newAccountCmd())
	cmd.AddCommand(newLogCmd())

	// Set default output
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	return cmd
}

// Execute runs the root command and exits non-zero on error. SIGINT and
// SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
