// Package stream writes image blocks sequentially to an io.Writer.
package stream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/storage"
)

// Writer is a storage.Sink over an io.Writer such as stdout.
type Writer struct {
	w      io.Writer
	blocks int
}

var _ storage.Sink = (*Writer)(nil)

// New returns a Writer that writes to w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) WriteBlock(b []byte) error {
	if len(b) != block.Size {
		return fmt.Errorf("block %d has %d bytes: %w", s.blocks, len(b), storage.ErrBlockSize)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("writing block %d: %w", s.blocks, err)
	}
	s.blocks++
	return nil
}

// Blocks is the number of blocks written so far.
func (s *Writer) Blocks() int {
	return s.blocks
}

// File writes an image to a temporary file next to its destination and
// renames it into place on Commit, so a failed run leaves no partial image.
type File struct {
	*Writer
	f    *os.File
	path string
	done bool
}

// Create opens a temporary file for the image that will be stored at path.
func Create(path string) (*File, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("creating image file: %w", err)
	}
	return &File{Writer: New(f), f: f, path: path}, nil
}

// Commit flushes the image and moves it to its final path.
func (f *File) Commit() error {
	if f.done {
		return fmt.Errorf("image file already closed")
	}
	f.done = true
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		os.Remove(f.f.Name())
		return fmt.Errorf("syncing image file: %w", err)
	}
	if err := f.f.Close(); err != nil {
		os.Remove(f.f.Name())
		return fmt.Errorf("closing image file: %w", err)
	}
	if err := os.Rename(f.f.Name(), f.path); err != nil {
		os.Remove(f.f.Name())
		return fmt.Errorf("renaming image file: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.f.Close()
	os.Remove(f.f.Name())
}
