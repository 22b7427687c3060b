package locator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"pgvault/internal/integrations/docker"
	"pgvault/internal/types"
)

// postgres official images and most derivatives carry this in the image name
const imageFilter = "postgres"

// Locator resolves which running container to operate on. It is a pure query
// against the container runtime; no side effects.
type Locator struct {
	dockerClient docker.Docker
	pinned       string
}

// New builds a Locator. pinned optionally fixes the container by name,
// skipping discovery entirely.
func New(dc docker.Docker, pinned string) *Locator {
	return &Locator{dockerClient: dc, pinned: pinned}
}

// Candidates returns the running Postgres containers.
func (l *Locator) Candidates(ctx context.Context) ([]docker.ContainerInfo, error) {
	return l.dockerClient.ListContainers(ctx, imageFilter)
}

// Locate picks the target container. Exactly one candidate auto-selects;
// zero fails with ErrTargetNotFound; more than one requires selection to
// name one of the candidates, otherwise ErrAmbiguousTarget.
func (l *Locator) Locate(ctx context.Context, selection string) (docker.ContainerInfo, error) {
	if l.pinned != "" {
		running, info := l.dockerClient.IsContainerRunning(ctx, l.pinned)
		if !running {
			return docker.ContainerInfo{}, errors.Wrapf(types.ErrTargetNotFound, "container %q is not running", l.pinned)
		}
		return info, nil
	}

	candidates, err := l.Candidates(ctx)
	if err != nil {
		return docker.ContainerInfo{}, err
	}

	switch {
	case len(candidates) == 0:
		return docker.ContainerInfo{}, types.ErrTargetNotFound
	case len(candidates) == 1:
		return candidates[0], nil
	}

	if selection == "" {
		return docker.ContainerInfo{}, types.ErrAmbiguousTarget
	}

	match, ok := lo.Find(candidates, func(c docker.ContainerInfo) bool {
		return c.Name == selection || c.ID == selection
	})
	if !ok {
		return docker.ContainerInfo{}, errors.Wrapf(types.ErrInvalidInput, "%q is not one of the running database containers", selection)
	}
	return match, nil
}
