package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pgvault/internal/compress"
	"pgvault/internal/pg"
	"pgvault/internal/types"
	"pgvault/logger"
)

// Executor replays a chosen artifact into a target database. Destructive by
// nature, so every request must carry an explicit confirmation.
type Executor struct {
	engine pg.Engine
	now    func() time.Time
}

type Option func(*Executor)

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func NewExecutor(engine pg.Engine, opts ...Option) *Executor {
	e := &Executor{engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore runs the replay workflow: confirmation gate, create the database
// if missing, kick other sessions off it, decompress to a scratch file and
// replay. The scratch file is removed on every exit path.
func (e *Executor) Restore(ctx context.Context, req types.RestoreRequest) (types.RestoreJobResult, error) {
	result := types.RestoreJobResult{
		Status:    types.JobFailure,
		Database:  req.TargetDatabase,
		Artifact:  req.ChosenArtifact,
		Timestamp: e.now(),
	}

	if !req.Confirmed {
		result.ErrorDetail = types.ErrNotConfirmed.Error()
		return result, types.ErrNotConfirmed
	}

	if err := e.engine.EnsureDatabase(ctx, req.TargetDatabase); err != nil {
		result.ErrorDetail = err.Error()
		return result, errors.Wrap(err, "failed to ensure target database")
	}

	// open locks from other sessions would fail the replay; a failure to
	// kick them is logged and the replay still attempted
	if err := e.engine.TerminateSessions(ctx, req.TargetDatabase); err != nil {
		logger.Warn("failed to terminate active sessions, continuing",
			zap.String("database", req.TargetDatabase), zap.Error(err))
	}

	replayPath := req.ChosenArtifact.Path
	if req.ChosenArtifact.Compressed {
		scratch := filepath.Join(os.TempDir(), fmt.Sprintf("pgvault-restore-%s.sql", uuid.NewString()))
		if err := compress.Decompress(req.ChosenArtifact.Path, scratch); err != nil {
			_ = os.Remove(scratch)
			result.ErrorDetail = err.Error()
			return result, errors.Wrap(err, "failed to decompress artifact")
		}
		defer os.Remove(scratch)
		replayPath = scratch
	}

	logger.Info("replaying backup",
		zap.String("database", req.TargetDatabase),
		zap.String("artifact", req.ChosenArtifact.Name()))

	if err := e.engine.Restore(ctx, req.TargetDatabase, replayPath); err != nil {
		result.ErrorDetail = err.Error()
		return result, err
	}

	result.Status = types.JobSuccess
	logger.Info("restore completed",
		zap.String("database", req.TargetDatabase),
		zap.String("artifact", req.ChosenArtifact.Name()))
	return result, nil
}
