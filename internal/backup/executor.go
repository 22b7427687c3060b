package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"

	"pgvault/internal/catalog"
	"pgvault/internal/compress"
	"pgvault/internal/pg"
	"pgvault/internal/storage"
	"pgvault/internal/types"
	"pgvault/logger"
)

type executor struct {
	engine  pg.Engine
	catalog *catalog.Catalog
	offsite storage.Storage
	minFree uint64

	now       func() time.Time
	freeBytes func(path string) (uint64, error)
}

type Option func(*executor)

// WithOffsite adds an object-storage destination that receives a copy of
// every published artifact. Upload failures are noted, never fatal.
func WithOffsite(st storage.Storage) Option {
	return func(e *executor) { e.offsite = st }
}

func WithClock(now func() time.Time) Option {
	return func(e *executor) { e.now = now }
}

func WithFreeBytes(fn func(path string) (uint64, error)) Option {
	return func(e *executor) { e.freeBytes = fn }
}

func NewExecutor(engine pg.Engine, cat *catalog.Catalog, minFree uint64, opts ...Option) Executor {
	e := &executor{
		engine:  engine,
		catalog: cat,
		minFree: minFree,
		now:     time.Now,
		freeBytes: func(path string) (uint64, error) {
			usage, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run dumps one database, compresses the output and publishes it atomically:
// the dump is compressed into a .part sentinel the catalog never lists, then
// renamed to its final name only once fully written.
func (e *executor) Run(ctx context.Context, database string, mode types.BackupMode) (types.BackupJobResult, error) {
	startedAt := e.now()
	result := types.BackupJobResult{
		Status:    types.JobFailure,
		Database:  database,
		Timestamp: startedAt,
	}

	if mode.Kind == types.BackupTables && len(mode.Tables) == 0 {
		err := errors.Wrap(types.ErrInvalidInput, "table-subset backup requires at least one table")
		result.ErrorDetail = err.Error()
		return result, err
	}

	free, err := e.freeBytes(e.catalog.Dir())
	if err != nil {
		logger.Warn("could not determine free disk space, continuing",
			zap.String("dir", e.catalog.Dir()), zap.Error(err))
	} else if free < e.minFree {
		err := errors.Wrapf(types.ErrDiskPressure, "%d bytes free, need %d", free, e.minFree)
		result.ErrorDetail = err.Error()
		return result, err
	}

	dump, err := e.engine.Dump(ctx, database, mode)
	if err != nil {
		result.ErrorDetail = err.Error()
		return result, err
	}
	defer func() {
		_ = dump.Content.Close()
		_ = os.Remove(dump.Stat.Name)
	}()

	partialPath := filepath.Join(e.catalog.Dir(), e.catalog.EncodePartial(database, startedAt, true))
	finalPath := filepath.Join(e.catalog.Dir(), e.catalog.Encode(database, startedAt, true))

	size, err := compress.Compress(dump.Content, partialPath)
	if err != nil {
		// partial sentinel stays behind for inspection, invisible to the catalog
		result.ErrorDetail = err.Error()
		return result, err
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		result.ErrorDetail = err.Error()
		return result, errors.Wrap(err, "failed to publish artifact")
	}

	artifact := types.BackupArtifact{
		DatabaseName: database,
		CreatedAt:    startedAt,
		Path:         finalPath,
		SizeBytes:    size,
		Compressed:   true,
	}
	result.Status = types.JobSuccess
	result.Artifact = &artifact
	result.ErrorDetail = ""

	logger.Info("backup completed",
		zap.String("database", database),
		zap.String("artifact", artifact.Name()),
		zap.Int64("size", size))

	if e.offsite != nil {
		if err := e.uploadCopy(ctx, artifact); err != nil {
			result.Notes = fmt.Sprintf("offsite copy failed: %v", err)
			logger.Warn("offsite copy failed",
				zap.String("artifact", artifact.Name()), zap.Error(err))
		}
	}

	return result, nil
}

func (e *executor) uploadCopy(ctx context.Context, artifact types.BackupArtifact) error {
	fi, err := os.Open(artifact.Path)
	if err != nil {
		return err
	}
	defer fi.Close()

	return e.offsite.Save(ctx, artifact.Name(), types.File{
		Content: fi,
		Stat:    types.FileStat{Size: artifact.SizeBytes, Name: artifact.Name(), ContentType: "application/gzip"},
	})
}
