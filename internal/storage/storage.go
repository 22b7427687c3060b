package storage

import (
	"context"

	"pgvault/internal/types"
)

type (
	Type string

	// Storage receives offsite copies of published artifacts. The local
	// backup directory stays the catalog's source of truth; this is an
	// additional destination only.
	Storage interface {
		Save(ctx context.Context, location string, f types.File) error
		Ping(ctx context.Context) error
	}
)

const (
	TypeFS Type = "File"
	TypeS3 Type = "S3"
)

func (t Type) String() string {
	return string(t)
}
