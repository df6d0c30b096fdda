package util

import (
	"compress/gzip"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
)

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return info.IsDir()
}

// gzReadCloser closes the gzip stream and the underlying file together.
type gzReadCloser struct {
	io.Reader
	gz *gzip.Reader
	f  *os.File
}

func (g *gzReadCloser) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

// OpenMaybeGzip opens path for reading, transparently decompressing it when
// the name carries a .gz suffix.
func OpenMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &gzReadCloser{Reader: gz, gz: gz, f: f}, nil
}
