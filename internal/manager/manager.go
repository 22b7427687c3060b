package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"pgvault/internal/backup"
	"pgvault/internal/catalog"
	"pgvault/internal/config"
	"pgvault/internal/database"
	"pgvault/internal/integrations/docker"
	"pgvault/internal/lock"
	"pgvault/internal/locator"
	"pgvault/internal/notify"
	"pgvault/internal/pg"
	"pgvault/internal/restore"
	"pgvault/internal/retention"
	"pgvault/internal/storage"
	"pgvault/internal/types"
	"pgvault/logger"
)

// Manager wires the workflow together: locate the container, hold the
// backup directory lease, run dumps or a restore, prune, notify and record.
// Failures local to one database are converted into results and the run
// continues; only global preconditions abort it.
type Manager struct {
	cfg          config.Config
	dockerClient docker.Docker
	catalog      *catalog.Catalog
	notifier     *notify.Notifier
	history      database.HistoryRepository

	// overridable in tests
	newEngine func(target docker.ContainerInfo) pg.Engine
}

func New(cfg config.Config, dc docker.Docker, history database.HistoryRepository) *Manager {
	m := &Manager{
		cfg:          cfg,
		dockerClient: dc,
		catalog:      catalog.New(cfg.BackupDir, cfg.FilePrefix),
		notifier:     notify.New(cfg.WebhookURL, cfg.DeadLetterPath),
		history:      history,
	}
	m.newEngine = func(target docker.ContainerInfo) pg.Engine {
		return pg.NewDockerEngine(dc, target.Name, cfg.PGUser, cfg.PGPassword)
	}
	return m
}

func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

func (m *Manager) Locator() *locator.Locator {
	return locator.New(m.dockerClient, m.cfg.Container)
}

// RunBackup backs up the given databases, or every database in the target
// when none are named. types.AllDatabases runs one whole-cluster dump.
// Each database gets its own job result, prune pass and webhook report.
func (m *Manager) RunBackup(ctx context.Context, databases []string, mode types.BackupMode, selection string) error {
	target, err := m.Locator().Locate(ctx, selection)
	if err != nil {
		return err
	}
	logger.Info("backing up from container",
		zap.String("container", target.Name),
		zap.String("image", target.Image))

	if err := os.MkdirAll(m.cfg.BackupDir, 0700); err != nil {
		return errors.Wrap(err, "failed to create backup directory")
	}

	release, err := lock.New(m.cfg.BackupDir).Acquire()
	if err != nil {
		return err
	}
	defer release()

	engine := m.newEngine(target)
	if len(databases) == 0 {
		databases, err = engine.ListDatabases(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to list databases")
		}
		if len(databases) == 0 {
			return errors.New("target has no databases to back up")
		}
	}
	databases = lo.Uniq(databases)

	executor := m.newExecutor(engine)
	pruner := retention.New(m.catalog)

	failed := 0
	for _, db := range databases {
		// stop between iterations on cancellation, never mid-write
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := executor.Run(ctx, db, mode)
		if err != nil {
			failed++
			logger.Error("backup failed",
				zap.String("database", db), zap.Error(err))
		}

		report := types.RetentionReport{}
		if result.Status == types.JobSuccess {
			report, err = pruner.Prune(m.cfg.RetentionDays, db)
			if err != nil {
				logger.Error("prune failed",
					zap.String("database", db), zap.Error(err))
			}
		}

		m.notifier.Notify(ctx, notify.BackupPayload(result, report, m.cfg.RetentionDays))
		m.record(ctx, database.BackupRecord(result))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d backups failed", failed, len(databases))
	}
	return nil
}

// RunRestore replays the requested artifact into its target database.
func (m *Manager) RunRestore(ctx context.Context, req types.RestoreRequest, selection string) error {
	target, err := m.Locator().Locate(ctx, selection)
	if err != nil {
		return err
	}

	release, err := lock.New(m.cfg.BackupDir).Acquire()
	if err != nil {
		return err
	}
	defer release()

	engine := m.newEngine(target)
	result, restoreErr := restore.NewExecutor(engine).Restore(ctx, req)

	// an unconfirmed request is an abort, not a reportable run
	if !errors.Is(restoreErr, types.ErrNotConfirmed) {
		m.notifier.Notify(ctx, notify.RestorePayload(result, m.cfg.RetentionDays))
		m.record(ctx, database.RestoreRecord(result))
	}
	return restoreErr
}

// Prune runs retention on its own, outside a backup cycle.
func (m *Manager) Prune(ctx context.Context, databaseName string) (types.RetentionReport, error) {
	release, err := lock.New(m.cfg.BackupDir).Acquire()
	if err != nil {
		return types.RetentionReport{}, err
	}
	defer release()

	return retention.New(m.catalog).Prune(m.cfg.RetentionDays, databaseName)
}

func (m *Manager) newExecutor(engine pg.Engine) backup.Executor {
	opts := []backup.Option{}
	if m.cfg.HasObjectStorage() {
		st, err := storage.NewObjectStorage(storage.Credentials{
			Endpoint:  m.cfg.S3Endpoint,
			AccessKey: m.cfg.S3AccessKey,
			SecretKey: m.cfg.S3SecretKey,
			Bucket:    m.cfg.S3Bucket,
			Region:    m.cfg.S3Region,
		})
		if err != nil {
			logger.Warn("object storage credential rejected, offsite copies disabled", zap.Error(err))
		} else {
			opts = append(opts, backup.WithOffsite(st))
		}
	}
	return backup.NewExecutor(engine, m.catalog, m.cfg.MinFreeBytes, opts...)
}

func (m *Manager) record(ctx context.Context, rec *database.JobRecord) {
	if m.history == nil {
		return
	}
	if err := m.history.Save(ctx, rec); err != nil {
		logger.Warn("failed to record job history", zap.Error(err))
	}
}
