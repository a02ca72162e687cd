// Package ingest streams arbitrarily large request bodies onto local disk.
package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// ErrInvalidPath marks a destination name that failed validation.
var ErrInvalidPath = errors.New("invalid path")

// Result describes a completed upload.
type Result struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Sink writes byte streams into files under a fixed storage root. A Sink
// holds no state between calls; concurrent stores to the same name race at
// the filesystem and the last writer wins.
type Sink struct {
	root string
	log  zerolog.Logger
}

// NewSink returns a sink rooted at dir. The caller is responsible for
// creating dir before the first store.
func NewSink(dir string, log zerolog.Logger) *Sink {
	return &Sink{root: dir, log: log}
}

// Root returns the storage root the sink writes into.
func (s *Sink) Root() string {
	return s.root
}

// Store copies src into root/name, creating or truncating the file. Memory
// use is bounded by the copy buffer regardless of stream length. On an I/O
// failure the partially written file is left in place; callers that need
// stronger guarantees must clean up themselves.
func (s *Sink) Store(_ context.Context, name string, src io.Reader) (Result, error) {
	if !ValidPath(name) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	dst := filepath.Join(s.root, name)
	f, err := os.Create(dst)
	if err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dst, err)
	}

	w := bufio.NewWriter(f)
	n, err := io.Copy(w, src)
	if err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("write %s after %d bytes: %w", dst, n, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("flush %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", dst, err)
	}

	res := Result{Name: name, Size: n, ContentType: detectContentType(dst)}
	s.log.Info().
		Str("name", res.Name).
		Int64("size", res.Size).
		Str("content_type", res.ContentType).
		Msg("stored upload")
	return res, nil
}

func detectContentType(path string) string {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
