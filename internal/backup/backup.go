package backup

import (
	"context"

	"pgvault/internal/types"
)

type (
	// Executor runs one dump and publishes the resulting artifact. The
	// returned result is always populated; err is non-nil on any failure so
	// batch callers can log and continue with the next database.
	Executor interface {
		Run(ctx context.Context, database string, mode types.BackupMode) (types.BackupJobResult, error)
	}
)
