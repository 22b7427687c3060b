package cmdutil

import (
	"github.com/pkg/errors"

	"pgvault/internal/config"
	"pgvault/internal/database"
	"pgvault/internal/integrations/docker"
	"pgvault/internal/manager"
	"pgvault/logger"
)

// Factory builds the pieces commands need, at Run time rather than at CLI
// construction, so commands that never touch docker or the history DB do
// not pay for connecting to them.
type Factory struct {
	ConfigPath string
}

func (f *Factory) Config() (config.Config, error) {
	return config.Load(f.ConfigPath)
}

// Manager loads and validates the config, connects to docker and opens the
// history store. A broken history DB only costs the history, not the run.
func (f *Factory) Manager() (*manager.Manager, config.Config, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, err
	}

	dc, err := docker.NewClient()
	if err != nil {
		return nil, config.Config{}, errors.Wrap(err, "docker is required for this command")
	}

	var history database.HistoryRepository
	if db, err := database.Open(cfg.HistoryDBPath); err != nil {
		logger.Warn("history store unavailable, runs will not be recorded: " + err.Error())
	} else {
		history = database.NewHistoryRepository(db)
	}

	return manager.New(cfg, dc, history), cfg, nil
}
