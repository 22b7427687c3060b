package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/strslice"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pgvault/internal/integrations/docker"
	"pgvault/internal/types"
	"pgvault/logger"
)

type dockerEngine struct {
	dockerClient docker.Docker
	container    string
	user         string
	password     string
}

// NewDockerEngine builds an Engine that runs the Postgres client tools
// inside the target container, so no client binaries are needed on the host.
func NewDockerEngine(dc docker.Docker, container, user, password string) Engine {
	return &dockerEngine{
		dockerClient: dc,
		container:    container,
		user:         user,
		password:     password,
	}
}

func (e *dockerEngine) Dump(ctx context.Context, database string, mode types.BackupMode) (types.File, error) {
	if mode.Kind == types.BackupTables && len(mode.Tables) == 0 {
		return types.File{}, errors.Wrap(types.ErrInvalidInput, "table-subset backup requires at least one table")
	}

	resultPath := fmt.Sprintf("/tmp/%s.sql", uuid.NewString())
	var cmd strslice.StrSlice
	if database == types.AllDatabases {
		cmd = strslice.StrSlice{"pg_dumpall", "-U", e.user, "-f", resultPath}
		if mode.Kind == types.BackupSchemaOnly {
			cmd = append(cmd, "--schema-only")
		}
	} else {
		cmd = strslice.StrSlice{"pg_dump", "-U", e.user, "-d", database, "-f", resultPath}
		switch mode.Kind {
		case types.BackupSchemaOnly:
			cmd = append(cmd, "--schema-only")
		case types.BackupTables:
			for _, table := range mode.Tables {
				cmd = append(cmd, "-t", table)
			}
		}
	}

	logger.Info("starting dump",
		zap.String("database", database),
		zap.String("container", e.container),
		zap.String("mode", string(mode.Kind)))

	result, err := e.exec(ctx, cmd)
	if err != nil {
		return types.File{}, errors.Wrap(err, "failed to execute dump")
	}
	if result.ExitCode != 0 {
		e.cleanupRemote(ctx, resultPath)
		return types.File{}, errors.Errorf("dump failed: %s", strings.TrimSpace(result.Stderr))
	}

	dmpFile, err := e.dockerClient.CopyFromContainer(ctx, e.container, resultPath)
	if err != nil {
		e.cleanupRemote(ctx, resultPath)
		return types.File{}, errors.Wrap(err, "failed to copy dump file")
	}

	e.cleanupRemote(ctx, resultPath)
	return dmpFile, nil
}

func (e *dockerEngine) Restore(ctx context.Context, database, artifactPath string) error {
	remoteDir := "/tmp"
	if err := e.dockerClient.CopyFileIntoContainer(ctx, e.container, artifactPath, remoteDir); err != nil {
		return errors.Wrap(err, "failed to copy artifact into container")
	}

	remotePath := remoteDir + "/" + baseName(artifactPath)
	defer e.cleanupRemote(ctx, remotePath)

	cmd := strslice.StrSlice{
		"psql",
		"-U", e.user,
		"-d", database,
		"-v", "ON_ERROR_STOP=1",
		"-f", remotePath,
	}
	result, err := e.exec(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, "failed to execute replay")
	}
	if result.ExitCode != 0 {
		return errors.Errorf("replay failed: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (e *dockerEngine) ListDatabases(ctx context.Context) ([]string, error) {
	result, err := e.query(ctx, "SELECT datname FROM pg_database WHERE datistemplate = false AND datname <> 'postgres'")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for _, line := range strings.Split(result, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (e *dockerEngine) TerminateSessions(ctx context.Context, database string) error {
	q := fmt.Sprintf(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid()",
		escapeLiteral(database))
	_, err := e.query(ctx, q)
	return err
}

func (e *dockerEngine) DatabaseExists(ctx context.Context, database string) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = '%s'", escapeLiteral(database))
	out, err := e.query(ctx, q)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

func (e *dockerEngine) EnsureDatabase(ctx context.Context, database string) error {
	exists, err := e.DatabaseExists(ctx, database)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	logger.Info("creating missing database", zap.String("database", database))
	cmd := strslice.StrSlice{"createdb", "-U", e.user, database}
	result, err := e.exec(ctx, cmd)
	if err != nil {
		return errors.Wrap(err, "failed to execute createdb")
	}
	if result.ExitCode != 0 {
		return errors.Errorf("createdb failed: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

// query runs a single statement through psql and returns bare tuple output.
func (e *dockerEngine) query(ctx context.Context, statement string) (string, error) {
	cmd := strslice.StrSlice{"psql", "-U", e.user, "-d", "postgres", "-t", "-A", "-c", statement}
	result, err := e.exec(ctx, cmd)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", errors.Errorf("psql failed: %s", strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

func (e *dockerEngine) exec(ctx context.Context, cmd strslice.StrSlice) (docker.ExecResult, error) {
	return e.dockerClient.ContainerExec(ctx, docker.ContainerExecParams{
		ContainerName: e.container,
		Cmd:           cmd,
		Envs:          []string{"PGPASSWORD=" + e.password},
	})
}

func (e *dockerEngine) cleanupRemote(ctx context.Context, path string) {
	_, err := e.exec(ctx, strslice.StrSlice{"rm", "-f", path})
	if err != nil {
		logger.Warn("failed to remove temp file in container",
			zap.String("path", path), zap.Error(err))
	}
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
