package configure

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"pgvault/internal/cmdutil"
	"pgvault/internal/config"
)

// New builds the configure command: interactive setup of the key=value
// configuration file, written with owner-only permissions.
func New(f *cmdutil.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Create or update the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.Config()
			if err != nil {
				return err
			}

			cfg.PGUser, err = cmdutil.PromptValue("Postgres user", cfg.PGUser, false)
			if err != nil {
				return err
			}
			cfg.PGPassword, err = cmdutil.PromptValue("Postgres password", cfg.PGPassword, true)
			if err != nil {
				return err
			}
			cfg.Container, err = cmdutil.PromptValue("Container name (empty = discover)", cfg.Container, false)
			if err != nil {
				return err
			}
			cfg.BackupDir, err = cmdutil.PromptValue("Backup directory", cfg.BackupDir, false)
			if err != nil {
				return err
			}
			// derived from BackupDir on every load; persisting them would
			// pin paths under a directory the operator may just have changed
			cfg.DeadLetterPath = ""
			cfg.LogFile = ""
			cfg.HistoryDBPath = ""

			daysValue, err := cmdutil.PromptValue("Retention days", strconv.Itoa(cfg.RetentionDays), false)
			if err != nil {
				return err
			}
			cfg.RetentionDays, err = strconv.Atoi(daysValue)
			if err != nil {
				return errors.Wrapf(err, "invalid retention days %q", daysValue)
			}

			cfg.WebhookURL, err = cmdutil.PromptValue("Webhook URL (empty = disabled)", cfg.WebhookURL, false)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(f.ConfigPath, cfg); err != nil {
				return err
			}

			cmdutil.PrintS("configuration saved to " + f.ConfigPath)
			return nil
		},
	}
}
