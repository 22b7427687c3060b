package compress

import (
	"compress/gzip"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Compress gzips src into dest. dest is created 0600 since dumps carry data.
func Compress(src io.Reader, destPath string) (int64, error) {
	destFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create compressed file")
	}
	defer destFile.Close()

	gw, err := gzip.NewWriterLevel(destFile, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	if _, err := io.Copy(gw, src); err != nil {
		_ = gw.Close()
		return 0, errors.Wrap(err, "failed to compress")
	}
	if err := gw.Close(); err != nil {
		return 0, err
	}

	stat, err := destFile.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// Decompress gunzips srcPath into destPath.
func Decompress(srcPath, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(err, "failed to open compressed file")
	}
	defer srcFile.Close()

	gr, err := gzip.NewReader(srcFile)
	if err != nil {
		return errors.Wrap(err, "failed to read gzip header")
	}
	defer gr.Close()

	destFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, gr); err != nil {
		return errors.Wrap(err, "failed to decompress")
	}
	return nil
}
