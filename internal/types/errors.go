package types

import "errors"

var (
	// ErrTargetNotFound means no running Postgres container matched.
	ErrTargetNotFound = errors.New("no database container found")

	// ErrAmbiguousTarget means more than one candidate matched and no
	// explicit selection was provided.
	ErrAmbiguousTarget = errors.New("multiple database containers found, selection required")

	// ErrOutOfRange means a catalog index outside [1, len].
	ErrOutOfRange = errors.New("backup index out of range")

	// ErrNotConfirmed gates destructive restores.
	ErrNotConfirmed = errors.New("restore not confirmed")

	// ErrInvalidInput means a request that can never succeed, e.g. a
	// table-subset backup with no tables.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDiskPressure means not enough free space in the backup directory
	// to run a dump.
	ErrDiskPressure = errors.New("insufficient free disk space")

	// ErrLockHeld means another backup/restore/prune run holds the
	// backup directory lease.
	ErrLockHeld = errors.New("backup directory is locked by another run")
)
