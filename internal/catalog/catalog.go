package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"pgvault/internal/types"
)

const (
	timestampLayout = "20060102_150405"

	// artifacts are written under this name until published
	partialSuffix = ".part"
)

// artifact names look like backup_20240101_120000_shop.sql.gz; the database
// segment is absent for whole-cluster dumps. New artifacts are always .sql
// but .backup files from older tooling still decode.
var namePattern = regexp.MustCompile(`^(.+?)_(\d{8}_\d{6})(?:_(.+?))?\.(?:sql|backup)(\.gz)?$`)

// Catalog lists and selects backup artifacts in one directory. The directory
// is the source of truth; nothing about artifacts is cached between calls.
type Catalog struct {
	dir    string
	prefix string
}

func New(dir, prefix string) *Catalog {
	return &Catalog{dir: dir, prefix: prefix}
}

func (c *Catalog) Dir() string {
	return c.dir
}

// Encode builds the artifact filename for a database and creation time.
// types.AllDatabases drops the database segment.
func (c *Catalog) Encode(database string, createdAt time.Time, compressed bool) string {
	name := fmt.Sprintf("%s_%s", c.prefix, createdAt.Format(timestampLayout))
	if database != types.AllDatabases {
		name = fmt.Sprintf("%s_%s", name, database)
	}
	name += ".sql"
	if compressed {
		name += ".gz"
	}
	return name
}

// EncodePartial is the sentinel name an in-progress write uses; Decode never
// matches it, so half-written artifacts stay out of listings.
func (c *Catalog) EncodePartial(database string, createdAt time.Time, compressed bool) string {
	return c.Encode(database, createdAt, compressed) + partialSuffix
}

// Decode parses an artifact filename back into (database, createdAt,
// compressed). ok is false for anything that does not match the pattern,
// including foreign files and partial sentinels.
func (c *Catalog) Decode(name string) (database string, createdAt time.Time, compressed bool, ok bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil || m[1] != c.prefix {
		return "", time.Time{}, false, false
	}

	ts, err := time.ParseInLocation(timestampLayout, m[2], time.Local)
	if err != nil {
		return "", time.Time{}, false, false
	}

	database = m[3]
	if database == "" {
		database = types.AllDatabases
	}
	return database, ts, m[4] != "", true
}

// List returns artifacts newest first, optionally filtered to one database.
// Files that do not match the naming pattern are skipped, not errors.
// Ordering ties on createdAt break by filename ascending, so repeated calls
// over an unchanged directory yield the same sequence.
func (c *Catalog) List(database string) ([]types.BackupArtifact, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read backup directory")
	}

	artifacts := make([]types.BackupArtifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		db, createdAt, compressed, ok := c.Decode(entry.Name())
		if !ok {
			continue
		}
		if database != "" && db != database {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, types.BackupArtifact{
			DatabaseName: db,
			CreatedAt:    createdAt,
			Path:         filepath.Join(c.dir, entry.Name()),
			SizeBytes:    info.Size(),
			Compressed:   compressed,
		})
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		if !artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
		}
		return artifacts[i].Name() < artifacts[j].Name()
	})
	return artifacts, nil
}

// SelectByIndex picks the index-th artifact, 1-based as presented to the
// operator. Anything outside [1, len] fails with ErrOutOfRange.
func SelectByIndex(list []types.BackupArtifact, index int) (types.BackupArtifact, error) {
	if index < 1 || index > len(list) {
		return types.BackupArtifact{}, errors.Wrapf(types.ErrOutOfRange, "index %d, have %d backups", index, len(list))
	}
	return list[index-1], nil
}

// Databases returns the distinct database names present in the catalog.
func (c *Catalog) Databases() ([]string, error) {
	all, err := c.List("")
	if err != nil {
		return nil, err
	}
	names := lo.Uniq(lo.Map(all, func(a types.BackupArtifact, _ int) string {
		return a.DatabaseName
	}))
	sort.Strings(names)
	return names, nil
}
