package cli

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/modest/internal/app"
	"github.com/nhle/modest/internal/metrics"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the terminal interface",
		Args:  cobra.NoArgs,
		RunE:  runTUI,
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := openApp(cmd, cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, log.Named("metrics")); err != nil {
				log.Errorw("Metrics server stopped", "error", err)
			}
		}()
	}

	p := tea.NewProgram(app.NewModel(a), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := p.Run()

	// Quitting from the interface already shut the app down; a forced quit
	// or a signal did not.
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer stop()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Shutdown incomplete", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running terminal interface: %w", runErr)
	}
	return nil
}
