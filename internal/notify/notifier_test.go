package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgvault/internal/types"
	"pgvault/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger("", "")
	os.Exit(m.Run())
}

func testPayload() Payload {
	return BackupPayload(types.BackupJobResult{
		Status:    types.JobSuccess,
		Database:  "shop",
		Timestamp: time.Date(2024, 3, 14, 15, 9, 26, 0, time.UTC),
		Artifact: &types.BackupArtifact{
			DatabaseName: "shop",
			Path:         "/backups/backup_20240314_150926_shop.sql.gz",
			SizeBytes:    2048,
		},
	}, types.RetentionReport{
		Deleted: []types.DeletedArtifact{{Name: "backup_20240201_000000_shop.sql.gz", Reason: "retention expired"}},
	}, 30)
}

func TestNotifyDelivers(t *testing.T) {
	var received Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deadLetter := filepath.Join(t.TempDir(), "dead.log")
	n := New(server.URL, deadLetter, WithBackoff(time.Millisecond))

	delivered := n.Notify(context.Background(), testPayload())
	assert.True(t, delivered)
	assert.NoFileExists(t, deadLetter)

	assert.Equal(t, "backup", received.Action)
	assert.Equal(t, "14/03/2024 15:09:26", received.Date)
	assert.Equal(t, "shop", received.DatabaseName)
	assert.Equal(t, "backup_20240314_150926_shop.sql.gz", received.BackupFile)
	assert.Equal(t, "2.0KB", received.BackupSize)
	assert.Equal(t, 30, received.RetentionDays)
	assert.Equal(t, "OK", received.Status)
	require.Len(t, received.DeletedBackup, 1)
	assert.Equal(t, "backup_20240201_000000_shop.sql.gz", received.DeletedBackup[0].BackupName)
	assert.Equal(t, "retention expired", received.DeletedBackup[0].DeletionReason)
}

func TestNotifyRetriesThenDeadLetters(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	deadLetter := filepath.Join(t.TempDir(), "dead.log")
	n := New(server.URL, deadLetter, WithBackoff(time.Millisecond))

	delivered := n.Notify(context.Background(), testPayload())
	assert.False(t, delivered)
	assert.Equal(t, 3, attempts)

	body, err := os.ReadFile(deadLetter)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 1)

	var stored Payload
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &stored))
	assert.Equal(t, "shop", stored.DatabaseName)
}

func TestNotifyRecoversOnLaterAttempt(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := New(server.URL, filepath.Join(t.TempDir(), "dead.log"), WithBackoff(time.Millisecond))
	assert.True(t, n.Notify(context.Background(), testPayload()))
	assert.Equal(t, 3, attempts)
}

func TestNotifyTransportErrorDeadLetters(t *testing.T) {
	deadLetter := filepath.Join(t.TempDir(), "dead.log")
	// closed server: every attempt is a transport error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	n := New(endpoint, deadLetter, WithBackoff(time.Millisecond))
	assert.False(t, n.Notify(context.Background(), testPayload()))
	assert.FileExists(t, deadLetter)
}

func TestNotifyWithoutEndpointIsNoop(t *testing.T) {
	n := New("", "")
	assert.True(t, n.Notify(context.Background(), testPayload()))
}

func TestBackupPayloadFailure(t *testing.T) {
	p := BackupPayload(types.BackupJobResult{
		Status:      types.JobFailure,
		Database:    "shop",
		ErrorDetail: "dump failed: connection refused",
		Timestamp:   time.Now(),
	}, types.RetentionReport{}, 14)

	assert.Equal(t, "ERRO", p.Status)
	assert.Equal(t, "", p.BackupFile)
	assert.Contains(t, p.Notes, "connection refused")
	assert.NotNil(t, p.DeletedBackup)
	assert.Empty(t, p.DeletedBackup)
}

func TestRestorePayload(t *testing.T) {
	artifact := types.BackupArtifact{
		DatabaseName: "shop",
		Path:         "/backups/backup_20240314_150926_shop.sql.gz",
		SizeBytes:    100,
	}

	ok := RestorePayload(types.RestoreJobResult{
		Status:    types.JobSuccess,
		Database:  "shop",
		Artifact:  artifact,
		Timestamp: time.Now(),
	}, 30)
	assert.Equal(t, "restore", ok.Action)
	assert.Equal(t, "OK", ok.Status)
	assert.Equal(t, "backup_20240314_150926_shop.sql.gz", ok.BackupFile)

	failed := RestorePayload(types.RestoreJobResult{
		Status:      types.JobFailure,
		Database:    "shop",
		Artifact:    artifact,
		ErrorDetail: "replay failed",
		Timestamp:   time.Now(),
	}, 30)
	assert.Equal(t, "ERRO", failed.Status)
	assert.Equal(t, "replay failed", failed.Notes)
}
