package types

import "time"

// AllDatabases is the logical name given to whole-cluster artifacts.
const AllDatabases = "ALL"

type (
	// BackupArtifact is a single backup file on durable storage. Its
	// filename encodes the database name and creation time; both are
	// recovered by parsing on read.
	BackupArtifact struct {
		DatabaseName string
		CreatedAt    time.Time
		Path         string
		SizeBytes    int64
		Compressed   bool
	}

	// BackupMode selects what a dump covers.
	BackupMode struct {
		Kind   BackupKind
		Tables []string
	}

	BackupKind string
)

const (
	BackupFull       BackupKind = "full"
	BackupSchemaOnly BackupKind = "schema-only"
	BackupTables     BackupKind = "tables"
)

func FullBackup() BackupMode {
	return BackupMode{Kind: BackupFull}
}

func SchemaOnlyBackup() BackupMode {
	return BackupMode{Kind: BackupSchemaOnly}
}

func TableSubsetBackup(tables []string) BackupMode {
	return BackupMode{Kind: BackupTables, Tables: tables}
}

func (a BackupArtifact) Name() string {
	for i := len(a.Path) - 1; i >= 0; i-- {
		if a.Path[i] == '/' {
			return a.Path[i+1:]
		}
	}
	return a.Path
}

// Age returns how old the artifact is relative to now.
func (a BackupArtifact) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}
