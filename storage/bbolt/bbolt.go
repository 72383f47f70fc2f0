// Package bbolt provides a BBolt-backed archive of generated images.
//
// Each image lives in its own bucket under "images", keyed by the big-endian
// block index. Image metadata is kept as JSON in the "meta" bucket.
package bbolt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/storage"
)

var (
	imagesBucket = []byte("images")
	metaBucket   = []byte("meta")
)

// Archive stores complete images in a BBolt database.
type Archive struct {
	db *bbolt.DB
}

var _ storage.Archive = (*Archive)(nil)

// NewArchive returns an Archive backed by the given BBolt database.
func NewArchive(db *bbolt.DB) *Archive {
	return &Archive{db: db}
}

// OpenArchive opens a BBolt database at the given path and returns a new Archive.
func OpenArchive(path string, options *bbolt.Options) (*Archive, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewArchive(db), nil
}

// Close closes the underlying BBolt database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func blockKey(n int) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(n))
}

// Save stores every block of src under info.ID in one transaction. An
// existing image with the same ID is replaced.
func (a *Archive) Save(info storage.ImageInfo, src storage.Source) error {
	if info.ID == "" {
		return fmt.Errorf("saving image: empty id")
	}
	info.Blocks = src.Len()
	meta, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		images, err := tx.CreateBucketIfNotExists(imagesBucket)
		if err != nil {
			return err
		}
		if images.Bucket([]byte(info.ID)) != nil {
			if err := images.DeleteBucket([]byte(info.ID)); err != nil {
				return err
			}
		}
		b, err := images.CreateBucket([]byte(info.ID))
		if err != nil {
			return err
		}
		b.FillPercent = 1.0
		for i := 0; i < src.Len(); i++ {
			blk := src.Block(i)
			if len(blk) != block.Size {
				return fmt.Errorf("block %d has %d bytes: %w", i, len(blk), storage.ErrBlockSize)
			}
			if err := b.Put(blockKey(i), blk); err != nil {
				return err
			}
		}
		mb, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		return mb.Put([]byte(info.ID), meta)
	})
}

// Info returns the metadata of one image.
func (a *Archive) Info(id string) (storage.ImageInfo, error) {
	var info storage.ImageInfo
	err := a.db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		if mb == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		data := mb.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &info)
	})
	return info, err
}

// List returns all archived images, oldest first.
func (a *Archive) List() ([]storage.ImageInfo, error) {
	var infos []storage.ImageInfo
	err := a.db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		if mb == nil {
			return nil
		}
		return mb.ForEach(func(_, v []byte) error {
			var info storage.ImageInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			infos = append(infos, info)
			return nil
		})
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, err
}

// Export writes the blocks of image id to sink in order.
func (a *Archive) Export(id string, sink storage.Sink) error {
	return a.db.View(func(tx *bbolt.Tx) error {
		images := tx.Bucket(imagesBucket)
		if images == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		b := images.Bucket([]byte(id))
		if b == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		var meta []byte
		if mb := tx.Bucket(metaBucket); mb != nil {
			meta = mb.Get([]byte(id))
		}
		if meta == nil {
			return fmt.Errorf("%s metadata: %w", id, storage.ErrNotFound)
		}
		var info storage.ImageInfo
		if err := json.Unmarshal(meta, &info); err != nil {
			return fmt.Errorf("image %s metadata: %w", id, err)
		}
		c := b.Cursor()
		next := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !bytes.Equal(k, blockKey(next)) {
				return fmt.Errorf("image %s: block %d missing", id, next)
			}
			if err := sink.WriteBlock(v); err != nil {
				return err
			}
			next++
		}
		if next != info.Blocks {
			return fmt.Errorf("image %s: %d of %d blocks stored", id, next, info.Blocks)
		}
		return nil
	})
}

// Delete removes an image and its metadata.
func (a *Archive) Delete(id string) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		images := tx.Bucket(imagesBucket)
		if images == nil || images.Bucket([]byte(id)) == nil {
			return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
		}
		if err := images.DeleteBucket([]byte(id)); err != nil {
			return err
		}
		if mb := tx.Bucket(metaBucket); mb != nil {
			return mb.Delete([]byte(id))
		}
		return nil
	})
}
