package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/modest/internal/credential"
	"github.com/nhle/modest/internal/model"
	"github.com/nhle/modest/internal/ui/wizard"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage mail accounts",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newAccountAddCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountRemoveCmd())

	return cmd
}

func newAccountAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Add an account interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			res, err := wizard.Run()
			if err != nil {
				return err
			}
			acct := res.Account()

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.UpsertAccount(cmd.Context(), acct); err != nil {
				return err
			}
			if err := credential.Set(acct.CredentialKey(), res.Password); err != nil {
				return err
			}

			cmd.Printf("Added account %s (%s).\n", acct.ID, acct.Email)
			return nil
		},
	}
}

func newAccountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			// Configured accounts are saved on every start; include the ones
			// that have not been saved yet.
			accounts, err := st.GetAccounts(cmd.Context())
			if err != nil {
				return err
			}
			accounts = mergeAccounts(accounts, cfg.Accounts)

			if len(accounts) == 0 {
				cmd.Println("No accounts configured.")
				return nil
			}

			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				rows = append(rows, []string{
					a.ID,
					a.Name,
					a.Email,
					a.IMAPHost + ":" + a.IMAPPort,
					a.SMTPHost + ":" + a.SMTPPort,
					strconv.FormatBool(a.Enabled),
					a.UpdateInterval().String(),
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "Name", "Email", "IMAP", "SMTP", "Enabled", "Interval"},
				rows,
			))
			return nil
		},
	}
}

func newAccountRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <account-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an account and its stored password",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			acct, err := st.GetAccount(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := st.DeleteAccount(cmd.Context(), id); err != nil {
				return err
			}
			if err := credential.Delete(acct.CredentialKey()); err != nil {
				return fmt.Errorf("account removed but its password was not: %w", err)
			}

			cmd.Printf("Removed account %s.\n", id)
			for _, a := range cfg.Accounts {
				if a.ID == id {
					cmd.Println("It is still listed in the config file and will be added again on the next start.")
					break
				}
			}
			return nil
		},
	}
}

// mergeAccounts appends the configured accounts missing from saved.
func mergeAccounts(saved, configured []model.AccountConfig) []model.AccountConfig {
	known := make(map[string]bool, len(saved))
	for _, a := range saved {
		known[a.ID] = true
	}
	for _, a := range configured {
		if !known[a.ID] {
			saved = append(saved, a)
		}
	}
	return saved
}
