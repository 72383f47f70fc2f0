// Package postgres implements storage.Archive backed by PostgreSQL.
//
// Image metadata lives in the images table; blocks are rows of image_blocks
// keyed by (image_id, idx) and loaded with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/storage"
)

// Archive implements storage.Archive backed by PostgreSQL.
type Archive struct {
	pool *pgxpool.Pool
}

var _ storage.Archive = (*Archive)(nil)

// NewArchive returns an Archive backed by the given pgx connection pool.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// OpenArchive creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Archive.
func OpenArchive(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewArchive(pool), nil
}

// IsDSN reports whether an archive location names a PostgreSQL database
// rather than a BBolt file.
func IsDSN(location string) bool {
	return strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://")
}

// Close closes the underlying connection pool.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}

// Save stores every block of src under info.ID in one transaction. An
// existing image with the same ID is replaced.
func (a *Archive) Save(info storage.ImageInfo, src storage.Source) error {
	if info.ID == "" {
		return fmt.Errorf("saving image: empty id")
	}
	info.Blocks = src.Len()

	rows := make([][]any, 0, src.Len())
	for i := 0; i < src.Len(); i++ {
		blk := src.Block(i)
		if len(blk) != block.Size {
			return fmt.Errorf("block %d has %d bytes: %w", i, len(blk), storage.ErrBlockSize)
		}
		rows = append(rows, []any{info.ID, i, blk})
	}

	ctx := context.Background()
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM images WHERE id = $1`, info.ID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO images (id, created_at, mode, records, readers, blocks)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		info.ID, info.CreatedAt, info.Mode, info.Records, info.Readers, info.Blocks)
	if err != nil {
		return err
	}
	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"image_blocks"},
		[]string{"image_id", "idx", "data"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying blocks: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d blocks", n, len(rows))
	}
	return tx.Commit(ctx)
}

// Info returns the metadata of one image.
func (a *Archive) Info(id string) (storage.ImageInfo, error) {
	var info storage.ImageInfo
	err := a.pool.QueryRow(context.Background(),
		`SELECT id, created_at, mode, records, readers, blocks FROM images WHERE id = $1`,
		id).Scan(&info.ID, &info.CreatedAt, &info.Mode, &info.Records, &info.Readers, &info.Blocks)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ImageInfo{}, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return storage.ImageInfo{}, err
	}
	return info, nil
}

// List returns all archived images, oldest first.
func (a *Archive) List() ([]storage.ImageInfo, error) {
	rows, err := a.pool.Query(context.Background(),
		`SELECT id, created_at, mode, records, readers, blocks FROM images ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ImageInfo, error) {
		var info storage.ImageInfo
		err := row.Scan(&info.ID, &info.CreatedAt, &info.Mode, &info.Records, &info.Readers, &info.Blocks)
		return info, err
	})
}

// Export writes the blocks of image id to sink in order.
func (a *Archive) Export(id string, sink storage.Sink) error {
	info, err := a.Info(id)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rows, err := a.pool.Query(ctx,
		`SELECT idx, data FROM image_blocks WHERE image_id = $1 ORDER BY idx`, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	next := 0
	for rows.Next() {
		var idx int
		var data []byte
		if err := rows.Scan(&idx, &data); err != nil {
			return err
		}
		if idx != next {
			return fmt.Errorf("image %s: block %d missing", id, next)
		}
		if err := sink.WriteBlock(data); err != nil {
			return err
		}
		next++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if next != info.Blocks {
		return fmt.Errorf("image %s: %d of %d blocks stored", id, next, info.Blocks)
	}
	return nil
}

// Delete removes an image and its blocks.
func (a *Archive) Delete(id string) error {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	return nil
}
