// Package storage defines where image blocks go: a sequential Sink that
// receives every block of an image in order, and sources that hold a
// complete image.
package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an archived image does not exist.
	ErrNotFound = errors.New("image not found")
	// ErrBlockSize is returned when a block is not exactly the block size.
	ErrBlockSize = errors.New("wrong block size")
)

// Sink receives the blocks of an image in order. Implementations keep a
// monotonic cursor; blocks cannot be rewritten.
type Sink interface {
	WriteBlock(b []byte) error
}

// Source is a complete image held in memory or in an archive.
type Source interface {
	Len() int
	Block(n int) []byte
}

// Archive keeps complete images by id.
type Archive interface {
	Save(info ImageInfo, src Source) error
	Info(id string) (ImageInfo, error)
	List() ([]ImageInfo, error)
	Export(id string, sink Sink) error
	Delete(id string) error
	Close() error
}

// ImageInfo describes an archived image.
type ImageInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Mode      string    `json:"mode"`
	Records   int       `json:"records"`
	Readers   int       `json:"readers"`
	Blocks    int       `json:"blocks"`
}

// Copy writes every block of src to dst in order.
func Copy(dst Sink, src Source) error {
	for i := 0; i < src.Len(); i++ {
		if err := dst.WriteBlock(src.Block(i)); err != nil {
			return err
		}
	}
	return nil
}
