package history

import (
	"github.com/spf13/cobra"

	"pgvault/internal/cmdutil"
	"pgvault/internal/database"
)

// New builds the history command, listing recorded backup and restore runs.
func New(f *cmdutil.Factory) *cobra.Command {
	var (
		databaseName string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup and restore runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Config()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := database.Open(cfg.HistoryDBPath)
			if err != nil {
				return err
			}
			repo := database.NewHistoryRepository(db)

			var records []*database.JobRecord
			if databaseName != "" {
				records, err = repo.FindByDatabase(cmd.Context(), databaseName, limit)
			} else {
				records, err = repo.FindRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmdutil.Print("no recorded runs")
				return nil
			}

			cmdutil.Print(cmdutil.RenderHistory(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&databaseName, "database", "d", "", "only show runs for this database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
