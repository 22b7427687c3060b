package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pgvault/internal/types"
	"pgvault/logger"
)

// Docker is the container runtime boundary. Everything the workflow needs
// from the runtime goes through here: candidate discovery, exec'ing the
// dump/restore tools inside a container and moving files in and out.
type Docker interface {
	ListContainers(ctx context.Context, imageFilter string) ([]ContainerInfo, error)
	IsContainerRunning(ctx context.Context, name string) (bool, ContainerInfo)
	ContainerExec(ctx context.Context, params ContainerExecParams) (ExecResult, error)
	CopyFromContainer(ctx context.Context, containerName, filePath string) (types.File, error)
	CopyFileIntoContainer(ctx context.Context, containerName, src, destDir string) error
}

type dockerClient struct {
	hostClient client.APIClient
}

func NewClient() (Docker, error) {
	hostClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation(), client.WithTimeout(10*time.Minute))
	if err != nil {
		return nil, err
	}

	if _, err := hostClient.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to connect to docker host")
	}

	return &dockerClient{hostClient: hostClient}, nil
}

// ListContainers returns running containers whose image name contains
// imageFilter (case-insensitive). Empty filter returns all running containers.
func (d *dockerClient) ListContainers(ctx context.Context, imageFilter string) ([]ContainerInfo, error) {
	list, err := d.hostClient.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("status", "running")),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list containers")
	}

	result := make([]ContainerInfo, 0, len(list))
	for _, next := range list {
		if imageFilter != "" && !strings.Contains(strings.ToLower(next.Image), strings.ToLower(imageFilter)) {
			continue
		}
		name := ""
		if len(next.Names) > 0 {
			name = strings.TrimPrefix(next.Names[0], "/")
		}
		result = append(result, ContainerInfo{
			ID:    next.ID,
			Name:  name,
			Image: next.Image,
			State: next.State,
		})
	}
	return result, nil
}

func (d *dockerClient) IsContainerRunning(ctx context.Context, name string) (bool, ContainerInfo) {
	result, err := d.hostClient.ContainerInspect(ctx, name)
	if err != nil {
		return false, ContainerInfo{}
	}

	info := ContainerInfo{
		ID:    result.ID,
		Name:  strings.TrimPrefix(result.Name, "/"),
		Image: result.Config.Image,
		State: result.State.Status,
	}
	if result.State.Running || result.State.Restarting {
		return true, info
	}
	return false, ContainerInfo{}
}

// ContainerExec runs a command in the container and waits for it to finish.
// Transport problems come back as error; the command's own exit code and
// captured stderr are in the result for the caller to judge.
func (d *dockerClient) ContainerExec(ctx context.Context, params ContainerExecParams) (ExecResult, error) {
	execID, err := d.hostClient.ContainerExecCreate(ctx, params.ContainerName, container.ExecOptions{
		Env:          params.Envs,
		Cmd:          params.Cmd,
		AttachStderr: true,
		AttachStdout: true,
	})
	if err != nil {
		return ExecResult{}, errors.Wrap(err, "failed to create exec")
	}

	hr, err := d.hostClient.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, errors.Wrap(err, "failed to attach to exec")
	}
	defer hr.Close()

	// attach stream closes when the command exits
	stdOut, stdErr, err := ReadExecResponse(hr.Reader)
	if err != nil {
		return ExecResult{}, errors.Wrap(err, "failed to read exec output")
	}

	inspect, err := d.hostClient.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return ExecResult{}, errors.Wrap(err, "failed to inspect exec")
	}
	for inspect.Running {
		select {
		case <-ctx.Done():
			return ExecResult{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		inspect, err = d.hostClient.ContainerExecInspect(ctx, execID.ID)
		if err != nil {
			return ExecResult{}, errors.Wrap(err, "failed to inspect exec")
		}
	}

	result := ExecResult{ExitCode: inspect.ExitCode, Stdout: stdOut, Stderr: stdErr}
	if inspect.ExitCode != 0 {
		logger.Debug("container exec returned non-zero",
			zap.String("container", params.ContainerName),
			zap.Int("exit_code", inspect.ExitCode),
			zap.String("stderr", stdErr))
	}
	return result, nil
}

// CopyFromContainer copies one file out of the container into a temp file on
// the host. The caller owns the returned file and removes it when done.
func (d *dockerClient) CopyFromContainer(ctx context.Context, containerName, filePath string) (types.File, error) {
	rc, _, err := d.hostClient.CopyFromContainer(ctx, containerName, filePath)
	if err != nil {
		return types.File{}, errors.Wrapf(err, "failed to copy %s from container", filePath)
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	if _, err := tr.Next(); err != nil {
		return types.File{}, errors.Wrap(err, "unexpected archive from container")
	}

	tmp, err := os.CreateTemp("", "pgvault-copy-*")
	if err != nil {
		return types.File{}, err
	}
	size, err := io.Copy(tmp, tr)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return types.File{}, errors.Wrap(err, "failed to write copied file")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return types.File{}, err
	}

	logger.Debug("copied file from container",
		zap.String("container", containerName),
		zap.String("path", filePath),
		zap.Int64("size", size))

	return types.File{
		Content: tmp,
		Stat:    types.FileStat{Size: size, Name: tmp.Name(), Mode: 0600},
	}, nil
}

// CopyFileIntoContainer tars src in memory and streams it into destDir.
func (d *dockerClient) CopyFileIntoContainer(ctx context.Context, containerName, src, destDir string) error {
	fi, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fi.Close()

	stat, err := fi.Stat()
	if err != nil {
		return err
	}

	var buffer bytes.Buffer
	tw := tar.NewWriter(&buffer)
	header := &tar.Header{
		Name: filepath.Base(src),
		Mode: 0644,
		Size: stat.Size(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tw, fi); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	err = d.hostClient.CopyToContainer(ctx, containerName, destDir,
		bytes.NewReader(buffer.Bytes()), container.CopyToContainerOptions{
			AllowOverwriteDirWithFile: true,
		})
	if err != nil {
		return errors.Wrapf(err, "failed to copy %s into container", src)
	}
	return nil
}
