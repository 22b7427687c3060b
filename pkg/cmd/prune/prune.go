package prune

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/catalog"
	"pgvault/internal/cmdutil"
	"pgvault/internal/lock"
	"pgvault/internal/retention"
)

// New builds the prune command, deleting backups older than the retention
// window outside a backup cycle.
func New(f *cmdutil.Factory) *cobra.Command {
	var (
		database string
		days     int
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Config()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			retentionDays := cfg.RetentionDays
			if cmd.Flags().Changed("days") {
				retentionDays = days
			}

			release, err := lock.New(cfg.BackupDir).Acquire()
			if err != nil {
				return err
			}
			defer release()

			cat := catalog.New(cfg.BackupDir, cfg.FilePrefix)
			report, err := retention.New(cat).Prune(retentionDays, database)
			if err != nil {
				return err
			}

			for _, d := range report.Deleted {
				cmdutil.Print(fmt.Sprintf("deleted %s (%s)", d.Name, d.Reason))
			}
			for _, d := range report.Failed {
				cmdutil.PrintW(fmt.Sprintf("kept %s (%s)", d.Name, d.Reason))
			}
			cmdutil.PrintS(fmt.Sprintf("%d backup(s) deleted", len(report.Deleted)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "only prune backups of this database")
	cmd.Flags().IntVar(&days, "days", 0, "override the configured retention window")
	return cmd
}
