package backup

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pgvault/internal/cmdutil"
	"pgvault/internal/manager"
	"pgvault/internal/types"
)

// New builds the backup command. With no flags it dumps every database in
// the target container; --all runs a single whole-cluster dump instead.
func New(f *cmdutil.Factory) *cobra.Command {
	var (
		databases  []string
		tables     []string
		schemaOnly bool
		all        bool
		container  string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump databases from the target container into the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(databases) > 0 {
				return errors.Wrap(types.ErrInvalidInput, "--all and --database are mutually exclusive")
			}
			if len(tables) > 0 && len(databases) != 1 {
				return errors.Wrap(types.ErrInvalidInput, "--table requires exactly one --database")
			}

			mode := types.FullBackup()
			switch {
			case schemaOnly:
				mode = types.SchemaOnlyBackup()
			case len(tables) > 0:
				mode = types.TableSubsetBackup(tables)
			}

			if all {
				databases = []string{types.AllDatabases}
			}

			m, _, err := f.Manager()
			if err != nil {
				return err
			}

			selection := container
			if selection == "" {
				selection, err = resolveAmbiguity(cmd.Context(), m)
				if err != nil {
					return err
				}
			}

			cmdutil.StartLoading("running backup...")
			err = m.RunBackup(cmd.Context(), databases, mode, selection)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return err
			}

			cmdutil.PrintS("backup completed")
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&databases, "database", "d", nil, "database to back up (repeatable; default: all databases)")
	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "restrict the dump to these tables (requires one --database)")
	cmd.Flags().BoolVar(&schemaOnly, "schema-only", false, "dump schema without data")
	cmd.Flags().BoolVar(&all, "all", false, "single whole-cluster dump via pg_dumpall")
	cmd.Flags().StringVar(&container, "container", "", "target container when several are running")
	return cmd
}

// resolveAmbiguity pre-checks the candidate set so the operator can pick a
// container interactively instead of getting an ambiguity error.
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
