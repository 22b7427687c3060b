package cmdutil

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"pgvault/internal/database"
	"pgvault/internal/types"
)

// RenderArtifacts draws the catalog as a table, newest first, with the
// 1-based index used by restore selection.
func RenderArtifacts(artifacts []types.BackupArtifact) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Backup", "Database", "Created", "Size", "Compressed"})
	for i, a := range artifacts {
		t.AppendRow(table.Row{
			i + 1,
			a.Name(),
			a.DatabaseName,
			a.CreatedAt.Format("02/01/2006 15:04:05"),
			HumanSize(a.SizeBytes),
			a.Compressed,
		})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// RenderHistory draws recent job records as a table.
func RenderHistory(records []*database.JobRecord) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"When", "Action", "Database", "Status", "Artifact", "Size", "Error"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.CreatedAt.Format(time.RFC3339),
			r.Action,
			r.Database,
			r.Status,
			r.Artifact,
			HumanSize(r.SizeBytes),
			r.ErrorDetail,
		})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}

func HumanSize(bytes int64) string {
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
