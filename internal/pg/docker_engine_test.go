package pg

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgvault/internal/integrations/docker"
	"pgvault/internal/types"
	"pgvault/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger("", "")
	os.Exit(m.Run())
}

// fakeDocker records every exec and serves canned results keyed by the
// leading binary name.
type fakeDocker struct {
	docker.Docker

	execs   []docker.ContainerExecParams
	results map[string]docker.ExecResult

	copiedOut  string
	copiedIn   []string
	dumpOutput string
}

func (f *fakeDocker) ContainerExec(ctx context.Context, params docker.ContainerExecParams) (docker.ExecResult, error) {
	f.execs = append(f.execs, params)
	if r, ok := f.results[params.Cmd[0]]; ok {
		return r, nil
	}
	return docker.ExecResult{}, nil
}

func (f *fakeDocker) CopyFromContainer(ctx context.Context, containerName, filePath string) (types.File, error) {
	f.copiedOut = filePath
	tmp, err := os.CreateTemp("", "dump-*.sql")
	if err != nil {
		return types.File{}, err
	}
	if _, err := tmp.WriteString(f.dumpOutput); err != nil {
		return types.File{}, err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return types.File{}, err
	}
	return types.File{
		Content: tmp,
		Stat:    types.FileStat{Name: tmp.Name(), Size: int64(len(f.dumpOutput))},
	}, nil
}

func (f *fakeDocker) CopyFileIntoContainer(ctx context.Context, containerName, src, destDir string) error {
	f.copiedIn = append(f.copiedIn, src+" -> "+destDir)
	return nil
}

// cmdFor returns the recorded exec whose binary matches name.
func (f *fakeDocker) cmdFor(name string) []string {
	for _, p := range f.execs {
		if p.Cmd[0] == name {
			return p.Cmd
		}
	}
	return nil
}

func newTestEngine(dc docker.Docker) Engine {
	return NewDockerEngine(dc, "pg-main", "postgres", "s3cret")
}

func TestDumpSingleDatabase(t *testing.T) {
	dc := &fakeDocker{dumpOutput: "CREATE TABLE items (id int);"}
	engine := newTestEngine(dc)

	file, err := engine.Dump(context.Background(), "shop", types.BackupMode{Kind: types.BackupFull})
	require.NoError(t, err)
	defer file.Content.Close()

	cmd := dc.cmdFor("pg_dump")
	require.NotNil(t, cmd)
	assert.Contains(t, cmd, "-U")
	assert.Contains(t, cmd, "postgres")
	assert.Contains(t, cmd, "-d")
	assert.Contains(t, cmd, "shop")
	assert.NotContains(t, cmd, "--schema-only")

	// dump written to a container temp path, copied out, then removed
	assert.True(t, strings.HasPrefix(dc.copiedOut, "/tmp/"))
	rm := dc.cmdFor("rm")
	require.NotNil(t, rm)
	assert.Equal(t, dc.copiedOut, rm[len(rm)-1])
}

func TestDumpPassesPassword(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), "shop", types.BackupMode{Kind: types.BackupFull})
	require.NoError(t, err)
	require.NotEmpty(t, dc.execs)
	assert.Contains(t, dc.execs[0].Envs, "PGPASSWORD=s3cret")
}

func TestDumpAllDatabases(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), types.AllDatabases, types.BackupMode{Kind: types.BackupFull})
	require.NoError(t, err)

	cmd := dc.cmdFor("pg_dumpall")
	require.NotNil(t, cmd)
	assert.Nil(t, dc.cmdFor("pg_dump"), "whole-cluster dump must not use pg_dump")
	assert.NotContains(t, cmd, "-d")
}

func TestDumpSchemaOnly(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), "shop", types.BackupMode{Kind: types.BackupSchemaOnly})
	require.NoError(t, err)
	assert.Contains(t, dc.cmdFor("pg_dump"), "--schema-only")
}

func TestDumpTableSubset(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), "shop", types.BackupMode{
		Kind:   types.BackupTables,
		Tables: []string{"items", "orders"},
	})
	require.NoError(t, err)

	cmd := dc.cmdFor("pg_dump")
	assert.Contains(t, cmd, "-t")
	assert.Contains(t, cmd, "items")
	assert.Contains(t, cmd, "orders")
}

func TestDumpEmptyTableSubset(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), "shop", types.BackupMode{Kind: types.BackupTables})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Empty(t, dc.execs, "nothing should run in the container")
}

func TestDumpNonZeroExit(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"pg_dump": {ExitCode: 1, Stderr: "FATAL: database \"shop\" does not exist"},
	}}
	engine := newTestEngine(dc)

	_, err := engine.Dump(context.Background(), "shop", types.BackupMode{Kind: types.BackupFull})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.Empty(t, dc.copiedOut, "failed dumps are not copied out")
}

func TestRestoreReplaysThroughPsql(t *testing.T) {
	dc := &fakeDocker{}
	engine := newTestEngine(dc)

	require.NoError(t, engine.Restore(context.Background(), "shop", "/var/backups/pg/backup_20240314_150926_shop.sql"))

	require.Len(t, dc.copiedIn, 1)
	assert.Equal(t, "/var/backups/pg/backup_20240314_150926_shop.sql -> /tmp", dc.copiedIn[0])

	cmd := dc.cmdFor("psql")
	require.NotNil(t, cmd)
	assert.Contains(t, cmd, "ON_ERROR_STOP=1")
	assert.Contains(t, cmd, "/tmp/backup_20240314_150926_shop.sql")
	assert.Contains(t, cmd, "shop")

	// replayed copy is removed from the container afterwards
	rm := dc.cmdFor("rm")
	require.NotNil(t, rm)
	assert.Equal(t, "/tmp/backup_20240314_150926_shop.sql", rm[len(rm)-1])
}

func TestRestoreReplayFailure(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 3, Stderr: "ERROR: syntax error at or near"},
	}}
	engine := newTestEngine(dc)

	err := engine.Restore(context.Background(), "shop", "/var/backups/pg/b.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestListDatabases(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0, Stdout: "shop\nanalytics\n\n"},
	}}
	engine := newTestEngine(dc)

	names, err := engine.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "analytics"}, names)

	cmd := dc.cmdFor("psql")
	assert.Contains(t, cmd, "-t")
	assert.Contains(t, cmd, "-A")
}

func TestDatabaseExists(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0, Stdout: "1\n"},
	}}
	engine := newTestEngine(dc)

	exists, err := engine.DatabaseExists(context.Background(), "shop")
	require.NoError(t, err)
	assert.True(t, exists)

	dc = &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0, Stdout: "\n"},
	}}
	exists, err = newTestEngine(dc).DatabaseExists(context.Background(), "shop")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsureDatabaseCreatesWhenMissing(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0, Stdout: ""},
	}}
	engine := newTestEngine(dc)

	require.NoError(t, engine.EnsureDatabase(context.Background(), "shop"))

	cmd := dc.cmdFor("createdb")
	require.NotNil(t, cmd)
	assert.Contains(t, cmd, "shop")
}

func TestEnsureDatabaseSkipsWhenPresent(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0, Stdout: "1\n"},
	}}
	engine := newTestEngine(dc)

	require.NoError(t, engine.EnsureDatabase(context.Background(), "shop"))
	assert.Nil(t, dc.cmdFor("createdb"))
}

func TestTerminateSessionsEscapesLiteral(t *testing.T) {
	dc := &fakeDocker{results: map[string]docker.ExecResult{
		"psql": {ExitCode: 0},
	}}
	engine := newTestEngine(dc)

	require.NoError(t, engine.TerminateSessions(context.Background(), "o'brien"))

	cmd := dc.cmdFor("psql")
	stmt := cmd[len(cmd)-1]
	assert.Contains(t, stmt, "o''brien")
	assert.NotContains(t, stmt, "'o'brien'")
}
