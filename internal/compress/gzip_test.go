package compress

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := strings.Repeat("INSERT INTO items VALUES (1, 'widget');\n", 200)

	compressed := filepath.Join(dir, "dump.sql.gz")
	size, err := Compress(strings.NewReader(original), compressed)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
	assert.Less(t, size, int64(len(original)), "repetitive SQL should shrink")

	info, err := os.Stat(compressed)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	restored := filepath.Join(dir, "dump.sql")
	require.NoError(t, Decompress(compressed, restored))

	content, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))
}

func TestCompressProducesValidGzip(t *testing.T) {
	dir := t.TempDir()
	compressed := filepath.Join(dir, "dump.sql.gz")
	_, err := Compress(strings.NewReader("select 1;"), compressed)
	require.NoError(t, err)

	body, err := os.ReadFile(compressed)
	require.NoError(t, err)
	gr, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer gr.Close()
}

func TestDecompressRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql.gz")
	require.NoError(t, os.WriteFile(src, []byte("not gzip at all"), 0600))

	err := Decompress(src, filepath.Join(dir, "out.sql"))
	assert.Error(t, err)
}

func TestDecompressMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Decompress(filepath.Join(dir, "absent.sql.gz"), filepath.Join(dir, "out.sql"))
	assert.Error(t, err)
}
