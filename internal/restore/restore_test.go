package restore

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgvault/internal/pg"
	"pgvault/internal/types"
	"pgvault/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger("", "")
	os.Exit(m.Run())
}

type fakeEngine struct {
	pg.Engine

	existing       map[string]bool
	created        []string
	terminated     []string
	terminateErr   error
	restoreErr     error
	restoredInto   string
	restoredSQL    string
	restoredPath   string
	ensureDatabase error
}

func (f *fakeEngine) DatabaseExists(ctx context.Context, database string) (bool, error) {
	return f.existing[database], nil
}

func (f *fakeEngine) EnsureDatabase(ctx context.Context, database string) error {
	if f.ensureDatabase != nil {
		return f.ensureDatabase
	}
	if !f.existing[database] {
		f.created = append(f.created, database)
	}
	return nil
}

func (f *fakeEngine) TerminateSessions(ctx context.Context, database string) error {
	f.terminated = append(f.terminated, database)
	return f.terminateErr
}

func (f *fakeEngine) Restore(ctx context.Context, database, artifactPath string) error {
	if f.restoreErr != nil {
		return f.restoreErr
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return err
	}
	f.restoredInto = database
	f.restoredSQL = string(content)
	f.restoredPath = artifactPath
	return nil
}

func writeCompressedArtifact(t *testing.T, dir, name, sql string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	fi, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(fi)
	_, err = gw.Write([]byte(sql))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, fi.Close())
	return path
}

func TestRestoreRequiresConfirmation(t *testing.T) {
	dir := t.TempDir()
	path := writeCompressedArtifact(t, dir, "backup_20240314_150926_shop.sql.gz", "select 1;")
	engine := &fakeEngine{existing: map[string]bool{"shop": true}}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: true},
		Confirmed:      false,
	}

	result, err := NewExecutor(engine).Restore(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrNotConfirmed)
	assert.Equal(t, types.JobFailure, result.Status)

	// nothing was touched
	assert.Empty(t, engine.created)
	assert.Empty(t, engine.terminated)
	assert.Empty(t, engine.restoredInto)
	assert.FileExists(t, path)
}

func TestRestoreCreatesMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeCompressedArtifact(t, dir, "backup_20240314_150926_shop.sql.gz", "CREATE TABLE items (id int);")
	engine := &fakeEngine{existing: map[string]bool{}}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: true},
		Confirmed:      true,
	}

	result, err := NewExecutor(engine).Restore(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.JobSuccess, result.Status)
	assert.Equal(t, []string{"shop"}, engine.created)
	assert.Equal(t, []string{"shop"}, engine.terminated)
	assert.Equal(t, "shop", engine.restoredInto)
	assert.Equal(t, "CREATE TABLE items (id int);", engine.restoredSQL)

	// scratch file is gone, original artifact is not
	assert.NoFileExists(t, engine.restoredPath)
	assert.FileExists(t, path)
}

func TestRestoreTerminateFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeCompressedArtifact(t, dir, "backup_20240314_150926_shop.sql.gz", "select 1;")
	engine := &fakeEngine{
		existing:     map[string]bool{"shop": true},
		terminateErr: fmt.Errorf("permission denied"),
	}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: true},
		Confirmed:      true,
	}

	result, err := NewExecutor(engine).Restore(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.JobSuccess, result.Status)
	assert.Equal(t, "shop", engine.restoredInto)
}

func TestRestoreUncompressedArtifactInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup_20240314_150926_shop.sql")
	require.NoError(t, os.WriteFile(path, []byte("select 1;"), 0600))
	engine := &fakeEngine{existing: map[string]bool{"shop": true}}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: false},
		Confirmed:      true,
	}

	_, err := NewExecutor(engine).Restore(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, path, engine.restoredPath, "uncompressed artifacts replay directly")
	assert.FileExists(t, path)
}

func TestRestoreReplayFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeCompressedArtifact(t, dir, "backup_20240314_150926_shop.sql.gz", "select 1;")
	engine := &fakeEngine{
		existing:   map[string]bool{"shop": true},
		restoreErr: fmt.Errorf("replay failed: syntax error"),
	}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: true},
		Confirmed:      true,
	}

	result, err := NewExecutor(engine).Restore(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, types.JobFailure, result.Status)
	assert.Contains(t, result.ErrorDetail, "syntax error")
}

func TestRestoreCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup_20240314_150926_shop.sql.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0600))
	engine := &fakeEngine{existing: map[string]bool{"shop": true}}

	req := types.RestoreRequest{
		TargetDatabase: "shop",
		ChosenArtifact: types.BackupArtifact{DatabaseName: "shop", Path: path, Compressed: true},
		Confirmed:      true,
	}

	result, err := NewExecutor(engine).Restore(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, types.JobFailure, result.Status)
	assert.Empty(t, engine.restoredInto)
}
