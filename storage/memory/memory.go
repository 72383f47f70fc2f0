// Package memory provides a thread-safe in-memory image.
package memory

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/storage"
)

// Image is a thread-safe in-memory storage.Sink and storage.Source.
// Suitable for testing and for staging an image before it is archived.
type Image struct {
	mu     sync.RWMutex
	blocks [][]byte
}

var (
	_ storage.Sink   = (*Image)(nil)
	_ storage.Source = (*Image)(nil)
)

// NewImage creates a new empty Image.
func NewImage() *Image {
	return &Image{}
}

func (m *Image) WriteBlock(b []byte) error {
	if len(b) != block.Size {
		return fmt.Errorf("block %d has %d bytes: %w", m.Len(), len(b), storage.ErrBlockSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, bytes.Clone(b))
	return nil
}

func (m *Image) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Block returns a copy of block n. It panics if n is out of range.
func (m *Image) Block(n int) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.blocks[n])
}

// Bytes returns the image as one contiguous slice.
func (m *Image) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]byte, 0, len(m.blocks)*block.Size)
	for _, b := range m.blocks {
		res = append(res, b...)
	}
	return res
}

// WriteTo streams the image to w.
func (m *Image) WriteTo(w io.Writer) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, b := range m.blocks {
		n, err := w.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
