package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	appsync "github.com/nhle/modest/internal/sync"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [account-id...]",
		Short: "Fetch new headers and exit",
		Long: "Fetch new headers for the given accounts, or for every account when\n" +
			"none is named. Mail left in the outbox is sent before exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := openApp(cmd, cfg, log)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				a.Poller().RefreshAll()
			}
			for _, id := range args {
				if _, ok := a.Account(id); !ok {
					_ = a.Close()
					return fmt.Errorf("unknown account %q", id)
				}
				a.Poller().RefreshAccount(id)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout(cfg))
			defer cancel()
			if err := a.WaitEmpty(ctx); err != nil {
				log.Warnw("Updates still running", "error", err)
			}
			statuses := a.Poller().GetStatuses()
			if err := a.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}

			wanted := make(map[string]bool, len(args))
			for _, id := range args {
				wanted[id] = true
			}

			failed := 0
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				if len(wanted) > 0 && !wanted[st.AccountID] {
					continue
				}
				state, detail := "ok", ""
				switch st.State {
				case appsync.UpdateQueued:
					state = "unfinished"
				case appsync.UpdateError:
					state = "error"
					if st.Error != nil {
						detail = st.Error.Error()
					}
					failed++
				}
				last := "-"
				if !st.LastUpdate.IsZero() {
					last = st.LastUpdate.Local().Format("15:04:05")
				}
				rows = append(rows, []string{st.AccountID, state, last, detail})
			}
			if len(rows) == 0 {
				cmd.Println("No accounts configured.")
				return nil
			}
			cmd.Println(renderTable([]string{"Account", "State", "Updated", "Error"}, rows))

			if failed > 0 {
				return fmt.Errorf("%d of %d accounts failed to update", failed, len(rows))
			}
			return nil
		},
	}
}
