package pg

import (
	"context"

	"pgvault/internal/types"
)

// Engine is the process boundary to the database engine. Which binary and
// which flags implement these operations is this package's concern alone.
type Engine interface {
	// Dump exports one database (or the whole cluster for
	// types.AllDatabases) and returns the raw dump as a host-side file.
	Dump(ctx context.Context, database string, mode types.BackupMode) (types.File, error)

	// Restore replays a plain-SQL artifact into the target database.
	Restore(ctx context.Context, database, artifactPath string) error

	ListDatabases(ctx context.Context) ([]string, error)

	// TerminateSessions kills other connections to the database so a
	// restore is not blocked by open locks.
	TerminateSessions(ctx context.Context, database string) error

	// EnsureDatabase creates the database when it does not exist.
	EnsureDatabase(ctx context.Context, database string) error

	// DatabaseExists reports whether the database is present.
	DatabaseExists(ctx context.Context, database string) (bool, error)
}
