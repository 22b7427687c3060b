package docker

import (
	"bytes"
	"io"

	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/pkg/stdcopy"
)

type ContainerInfo struct {
	ID    string
	Name  string
	Image string
	State string
}

type ContainerExecParams struct {
	ContainerName string
	Cmd           strslice.StrSlice
	Envs          []string

	// Stdin, when set, is streamed to the command. Used to replay SQL
	// dumps through psql without copying them into the container first.
	Stdin io.Reader
}

// ExecResult carries the demuxed output of a finished exec.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ReadExecResponse demuxes a docker attach stream into stdout and stderr.
func ReadExecResponse(reader io.Reader) (string, string, error) {
	var stdOut, stdErr bytes.Buffer
	_, err := stdcopy.StdCopy(&stdOut, &stdErr, reader)
	if err != nil {
		return "", "", err
	}
	return stdOut.String(), stdErr.String(), nil
}
