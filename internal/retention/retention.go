package retention

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pgvault/internal/catalog"
	"pgvault/internal/types"
	"pgvault/logger"
)

const reasonExpired = "retention expired"

// Manager deletes catalog entries older than the retention window. Deletion
// is best-effort per artifact; one failure never aborts the rest of the run.
type Manager struct {
	catalog *catalog.Catalog

	now    func() time.Time
	remove func(path string) error
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithRemove(fn func(path string) error) Option {
	return func(m *Manager) { m.remove = fn }
}

func New(cat *catalog.Catalog, opts ...Option) *Manager {
	m := &Manager{catalog: cat, now: time.Now, remove: os.Remove}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prune removes artifacts strictly older than retentionDays, optionally
// filtered to one database. An artifact aged exactly retentionDays is kept;
// the cutoff is on age alone.
func (m *Manager) Prune(retentionDays int, database string) (types.RetentionReport, error) {
	artifacts, err := m.catalog.List(database)
	if err != nil {
		return types.RetentionReport{}, err
	}

	cutoff := m.now().AddDate(0, 0, -retentionDays)
	report := types.RetentionReport{}

	for _, artifact := range artifacts {
		if !artifact.CreatedAt.Before(cutoff) {
			continue
		}

		if err := m.remove(artifact.Path); err != nil {
			logger.Warn("failed to delete expired backup",
				zap.String("artifact", artifact.Name()), zap.Error(err))
			report.Failed = append(report.Failed, types.DeletedArtifact{
				Name:   artifact.Name(),
				Reason: fmt.Sprintf("delete failed: %v", err),
			})
			continue
		}

		logger.Info("deleted expired backup",
			zap.String("artifact", artifact.Name()),
			zap.Time("created_at", artifact.CreatedAt))
		report.Deleted = append(report.Deleted, types.DeletedArtifact{
			Name:   artifact.Name(),
			Reason: reasonExpired,
		})
	}

	return report, nil
}
