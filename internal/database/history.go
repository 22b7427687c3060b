package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pgvault/internal/types"
)

type (
	// JobRecord is one backup or restore run, kept so operators can review
	// unattended runs after the fact.
	JobRecord struct {
		ID          uuid.UUID `gorm:"primaryKey" json:"id"`
		Action      string    `json:"action"`
		Database    string    `json:"database"`
		Status      string    `json:"status"`
		Artifact    string    `json:"artifact"`
		SizeBytes   int64     `json:"size_bytes"`
		ErrorDetail string    `json:"error_detail"`
		CreatedAt   time.Time `json:"created_at"`
	}

	HistoryRepository interface {
		Save(ctx context.Context, record *JobRecord) error
		FindRecent(ctx context.Context, limit int) ([]*JobRecord, error)
		FindByDatabase(ctx context.Context, database string, limit int) ([]*JobRecord, error)
	}

	historyRepository struct {
		db *gorm.DB
	}
)

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (h historyRepository) Save(ctx context.Context, record *JobRecord) error {
	return h.db.WithContext(ctx).Save(record).Error
}

func (h historyRepository) FindRecent(ctx context.Context, limit int) ([]*JobRecord, error) {
	result := make([]*JobRecord, 0)
	err := h.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&result).Error
	return result, err
}

func (h historyRepository) FindByDatabase(ctx context.Context, database string, limit int) ([]*JobRecord, error) {
	result := make([]*JobRecord, 0)
	err := h.db.WithContext(ctx).Where("database = ?", database).
		Order("created_at desc").Limit(limit).Find(&result).Error
	return result, err
}

// BackupRecord folds a backup job result into a history row.
func BackupRecord(result types.BackupJobResult) *JobRecord {
	record := &JobRecord{
		ID:          uuid.New(),
		Action:      "backup",
		Database:    result.Database,
		Status:      string(result.Status),
		ErrorDetail: result.ErrorDetail,
		CreatedAt:   result.Timestamp,
	}
	if result.Artifact != nil {
		record.Artifact = result.Artifact.Name()
		record.SizeBytes = result.Artifact.SizeBytes
	}
	return record
}

// RestoreRecord folds a restore job result into a history row.
func RestoreRecord(result types.RestoreJobResult) *JobRecord {
	return &JobRecord{
		ID:          uuid.New(),
		Action:      "restore",
		Database:    result.Database,
		Status:      string(result.Status),
		Artifact:    result.Artifact.Name(),
		SizeBytes:   result.Artifact.SizeBytes,
		ErrorDetail: result.ErrorDetail,
		CreatedAt:   result.Timestamp,
	}
}
