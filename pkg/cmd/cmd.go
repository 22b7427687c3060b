package cmd

import (
	"os"

	"github.com/spf13/cobra"

	backupcmd "pgvault/pkg/cmd/backup"
	configurecmd "pgvault/pkg/cmd/configure"
	historycmd "pgvault/pkg/cmd/history"
	listcmd "pgvault/pkg/cmd/list"
	prunecmd "pgvault/pkg/cmd/prune"
	restorecmd "pgvault/pkg/cmd/restore"

	"pgvault/internal/cmdutil"
	"pgvault/internal/config"
	"pgvault/logger"
)

func New() *cobra.Command {
	f := &cmdutil.Factory{ConfigPath: config.DefaultPath}

	cmd := &cobra.Command{
		Use:          "pgvault",
		Short:        "pgvault - backup and restore Postgres databases running in docker",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Config()
			if err != nil {
				return err
			}
			return logger.InitLogger(os.Getenv("PGVAULT_LOG_LEVEL"), cfg.LogFile)
		},
	}
	cmd.PersistentFlags().StringVar(&f.ConfigPath, "config", config.DefaultPath, "path to the configuration file")

	cmd.AddCommand(backupcmd.New(f))
	cmd.AddCommand(restorecmd.New(f))
	cmd.AddCommand(listcmd.New(f))
	cmd.AddCommand(prunecmd.New(f))
	cmd.AddCommand(historycmd.New(f))
	cmd.AddCommand(configurecmd.New(f))
	return cmd
}
