package cli

import (
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recently finished operations",
		Args:  cobra.NoArgs,
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

			records, err := st.RecentOperations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No operations recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				account := r.AccountID
				if account == "" {
					account = "-"
				}
				rows = append(rows, []string{
					r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					r.Type,
					account,
					r.Status,
					r.Error,
				})
			}
			cmd.Println(renderTable([]string{"Finished", "Type", "Account", "Status", "Error"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of operations to show")

	return cmd
}
