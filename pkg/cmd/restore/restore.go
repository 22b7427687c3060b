package restore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pgvault/internal/catalog"
	"pgvault/internal/cmdutil"
	"pgvault/internal/manager"
	"pgvault/internal/types"
)

// New builds the restore command. Interactive by default: shows the catalog,
// asks for an index and a confirmation. --index and --yes make it scriptable.
func New(f *cmdutil.Factory) *cobra.Command {
	var (
		databaseFilter string
		target         string
		index          int
		yes            bool
		container      string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replay a backup into the target container",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := f.Manager()
			if err != nil {
				return err
			}

			artifacts, err := m.Catalog().List(databaseFilter)
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				return errors.New("no backups found")
			}

			if index == 0 {
				printArtifacts(artifacts)
				index, err = cmdutil.PromptIndex(len(artifacts))
				if err != nil {
					return errors.Wrap(err, "selection aborted")
				}
			}

			chosen, err := catalog.SelectByIndex(artifacts, index)
			if err != nil {
				return err
			}

			targetDatabase := target
			if targetDatabase == "" {
				targetDatabase = chosen.DatabaseName
			}
			if chosen.DatabaseName == types.AllDatabases {
				// cluster dumps replay through the maintenance database
				targetDatabase = "postgres"
			}

			confirmed := yes
			if !confirmed {
				confirmed, err = cmdutil.PromptConfirm(fmt.Sprintf(
					"Replaying %s will overwrite data in database %q. Continue",
					chosen.Name(), targetDatabase))
				if err != nil {
					return err
				}
			}

			req := types.RestoreRequest{
				TargetDatabase: targetDatabase,
				ChosenArtifact: chosen,
				Confirmed:      confirmed,
			}

			selection := container
			if selection == "" {
				selection, err = resolveAmbiguity(cmd.Context(), m)
				if err != nil {
					return err
				}
			}

			cmdutil.StartLoading("restoring...")
			err = m.RunRestore(cmd.Context(), req, selection)
			cmdutil.StopLoading()
			if err != nil {
				if errors.Is(err, types.ErrNotConfirmed) {
					cmdutil.PrintW("restore aborted, nothing was changed")
					return nil
				}
				cmdutil.PrintE(err.Error())
				return err
			}

			cmdutil.PrintS(fmt.Sprintf("restore of %q completed", targetDatabase))
			return nil
		},
	}

	cmd.Flags().StringVarP(&databaseFilter, "database", "d", "", "only offer backups of this database")
	cmd.Flags().StringVar(&target, "target", "", "restore into this database instead of the artifact's own")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "backup index to restore, 1 is the newest (0 prompts)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the restore without prompting")
	cmd.Flags().StringVar(&container, "container", "", "target container when several are running")
	return cmd
}

func printArtifacts(artifacts []types.BackupArtifact) {
	cmdutil.Print(cmdutil.RenderArtifacts(artifacts))
}

func resolveAmbiguity(ctx context.Context, m *manager.Manager) (string, error) {
	candidates, err := m.Locator().Candidates(ctx)
	if err != nil {
		return "", err
	}
	if len(candidates) <= 1 {
		return "", nil
	}
	name, err := cmdutil.SelectContainer(candidates)
	if err != nil {
		return "", errors.Wrap(err, "container selection aborted")
	}
	return name, nil
}
