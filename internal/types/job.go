package types

import "time"

type (
	JobStatus string

	// BackupJobResult is produced per database per backup run and handed
	// straight to the notifier; it is not persisted beyond the run history.
	BackupJobResult struct {
		Status      JobStatus
		Database    string
		Artifact    *BackupArtifact
		ErrorDetail string
		Notes       string
		Timestamp   time.Time
	}

	// RestoreJobResult mirrors BackupJobResult for the restore flow.
	RestoreJobResult struct {
		Status      JobStatus
		Database    string
		Artifact    BackupArtifact
		ErrorDetail string
		Timestamp   time.Time
	}

	// RestoreRequest is the validated input to a restore. Confirmed must be
	// explicitly true before any destructive action runs.
	RestoreRequest struct {
		TargetDatabase string
		ChosenArtifact BackupArtifact
		Confirmed      bool
	}

	// DeletedArtifact is one entry of a RetentionReport.
	DeletedArtifact struct {
		Name   string
		Reason string
	}

	// RetentionReport is built fresh on each prune run and folded into the
	// next webhook payload. Failed holds artifacts past the window whose
	// deletion did not succeed; they stay on disk for the next run.
	RetentionReport struct {
		Deleted []DeletedArtifact
		Failed  []DeletedArtifact
	}
)

const (
	JobSuccess JobStatus = "success"
	JobFailure JobStatus = "failure"
)

func (r RetentionReport) Names() []string {
	names := make([]string, 0, len(r.Deleted))
	for _, d := range r.Deleted {
		names = append(names, d.Name)
	}
	return names
}
