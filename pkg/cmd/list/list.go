package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"pgvault/internal/catalog"
	"pgvault/internal/cmdutil"
)

// New builds the list command. Reads the backup directory only; no docker.
func New(f *cmdutil.Factory) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups in the backup directory, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Config()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			artifacts, err := catalog.New(cfg.BackupDir, cfg.FilePrefix).List(database)
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				cmdutil.Print("no backups found")
				return nil
			}

			cmdutil.Print(cmdutil.RenderArtifacts(artifacts))
			cmdutil.Print(fmt.Sprintf("%d backup(s)", len(artifacts)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "only list backups of this database")
	return cmd
}
