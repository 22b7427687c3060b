package notify

import (
	"fmt"

	"pgvault/internal/types"
)

const dateLayout = "02/01/2006 15:04:05"

type (
	// Payload is the webhook envelope, shared by backup and restore reports.
	Payload struct {
		Action        string          `json:"action"`
		Date          string          `json:"date"`
		DatabaseName  string          `json:"database_name"`
		BackupFile    string          `json:"backup_file"`
		BackupSize    string          `json:"backup_size"`
		RetentionDays int             `json:"retention_days"`
		DeletedBackup []DeletedBackup `json:"deleted_backup"`
		Status        string          `json:"status"`
		Notes         string          `json:"notes"`
	}

	DeletedBackup struct {
		BackupName     string `json:"backup_name"`
		DeletionReason string `json:"deletion_reason"`
	}
)

const (
	StatusOK    = "OK"
	StatusError = "ERRO"
)

// BackupPayload folds one backup job result and the prune report into the
// wire envelope.
func BackupPayload(result types.BackupJobResult, report types.RetentionReport, retentionDays int) Payload {
	p := Payload{
		Action:        "backup",
		Date:          result.Timestamp.Format(dateLayout),
		DatabaseName:  result.Database,
		RetentionDays: retentionDays,
		DeletedBackup: deletedEntries(report),
		Notes:         result.Notes,
	}

	if result.Status == types.JobSuccess {
		p.Status = StatusOK
		if result.Artifact != nil {
			p.BackupFile = result.Artifact.Name()
			p.BackupSize = humanSize(result.Artifact.SizeBytes)
		}
	} else {
		p.Status = StatusError
		p.Notes = joinNotes(result.Notes, result.ErrorDetail)
	}
	return p
}

// RestorePayload mirrors BackupPayload for the restore flow; backup_file
// names the source artifact.
func RestorePayload(result types.RestoreJobResult, retentionDays int) Payload {
	p := Payload{
		Action:        "restore",
		Date:          result.Timestamp.Format(dateLayout),
		DatabaseName:  result.Database,
		BackupFile:    result.Artifact.Name(),
		BackupSize:    humanSize(result.Artifact.SizeBytes),
		RetentionDays: retentionDays,
		DeletedBackup: []DeletedBackup{},
	}

	if result.Status == types.JobSuccess {
		p.Status = StatusOK
	} else {
		p.Status = StatusError
		p.Notes = result.ErrorDetail
	}
	return p
}

func deletedEntries(report types.RetentionReport) []DeletedBackup {
	entries := make([]DeletedBackup, 0, len(report.Deleted)+len(report.Failed))
	for _, d := range append(report.Deleted, report.Failed...) {
		entries = append(entries, DeletedBackup{BackupName: d.Name, DeletionReason: d.Reason})
	}
	return entries
}

func joinNotes(notes, detail string) string {
	switch {
	case notes == "":
		return detail
	case detail == "":
		return notes
	default:
		return notes + "; " + detail
	}
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
