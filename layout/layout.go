// Package layout composes storage images.
//
// Enveloped image:
//
//	[PIN verification][pad x (ReservedBlocks-1)][settings][records...][filler...]
//
// Legacy image:
//
//	[records...][filler...]
//
// Every image is exactly StorageBlocks blocks.
package layout

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/pin"
	"github.com/jmcleod/accenc/record"
	"github.com/jmcleod/accenc/storage"
)

// ErrCapacityExceeded is returned when records do not fit the image or a
// record does not fit its block.
var ErrCapacityExceeded = block.ErrCapacityExceeded

// Mode selects the block format.
type Mode int

const (
	ModeLegacy Mode = iota
	ModeEnveloped
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	case ModeEnveloped:
		return "enveloped"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Option configures a Builder.
type Option func(*Builder)

// WithSealer selects enveloped mode. Without it images are legacy.
func WithSealer(s *block.Sealer) Option {
	return func(b *Builder) {
		b.sealer = s
	}
}

// WithVerifier stores the PIN verifier hashes in the first reserved block.
func WithVerifier(v pin.Verifier) Option {
	return func(b *Builder) {
		b.verifier = &v
	}
}

// WithSettings sets the content of the settings block.
// Default: all settings off.
func WithSettings(s record.Settings) Option {
	return func(b *Builder) {
		b.settings = &s
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder writes images for one configuration.
type Builder struct {
	cfg      Config
	sealer   *block.Sealer
	verifier *pin.Verifier
	settings *record.Settings
	logger   *slog.Logger
}

// New returns a Builder. PIN verification and settings need enveloped mode.
func New(cfg Config, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	b := &Builder{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.sealer == nil {
		if b.verifier != nil {
			return nil, fmt.Errorf("PIN verification block requires a writer key")
		}
		if b.settings != nil {
			return nil, fmt.Errorf("settings block requires a writer key")
		}
	}
	return b, nil
}

// Mode reports the block format the Builder writes.
func (b *Builder) Mode() Mode {
	if b.sealer != nil {
		return ModeEnveloped
	}
	return ModeLegacy
}

// Overhead is the number of blocks used before the first record.
func (b *Builder) Overhead() int {
	if b.Mode() == ModeLegacy {
		return 0
	}
	return b.cfg.ReservedBlocks + 1
}

// MaxRecords is the number of records an image can hold.
func (b *Builder) MaxRecords() int {
	return b.cfg.StorageBlocks - b.Overhead()
}

// Stats summarizes a written image.
type Stats struct {
	Mode    Mode
	Readers int
	Records int
	Filler  int
	Blocks  int
}

// Build encodes records and writes a complete image to sink. Capacity and
// encoding errors are detected before the first block is written.
func (b *Builder) Build(records []record.Record, sink storage.Sink) (Stats, error) {
	stats := Stats{Mode: b.Mode(), Records: len(records)}
	if b.sealer != nil {
		stats.Readers = b.sealer.Readers()
	}
	if len(records) > b.MaxRecords() {
		return stats, fmt.Errorf("%d records, room for %d: %w", len(records), b.MaxRecords(), ErrCapacityExceeded)
	}

	contents := make([][]byte, len(records))
	for i, r := range records {
		payload, err := r.Encode()
		if err != nil {
			return stats, fmt.Errorf("record %d: %w", i, err)
		}
		contents[i] = record.WithHeader(record.ContentData, payload)
		if limit := b.capacity(); len(contents[i]) > limit {
			return stats, fmt.Errorf("record %d (%q) needs %d bytes, room for %d: %w",
				i, r.Label(), len(contents[i]), limit, ErrCapacityExceeded)
		}
	}

	w := &cursor{sink: sink}
	if b.Mode() == ModeEnveloped {
		if err := b.writeReserved(w); err != nil {
			return stats, err
		}
		if err := b.writeSettings(w); err != nil {
			return stats, err
		}
	}
	for i, c := range contents {
		blk, err := b.seal(c)
		if err != nil {
			return stats, fmt.Errorf("record %d: %w", i, err)
		}
		b.logger.Debug("record written", "index", i, "block", w.n)
		if err := w.write(blk); err != nil {
			return stats, err
		}
	}
	for w.n < b.cfg.StorageBlocks {
		if err := w.write(block.Filler()); err != nil {
			return stats, err
		}
		stats.Filler++
	}
	if w.n != b.cfg.StorageBlocks {
		panic(fmt.Sprintf("layout: wrote %d blocks, want %d", w.n, b.cfg.StorageBlocks))
	}
	stats.Blocks = w.n

	b.logger.Info("image written",
		slog.String("mode", stats.Mode.String()),
		slog.Int("readers", stats.Readers),
		slog.Int("records", stats.Records),
		slog.Int("filler", stats.Filler),
		slog.Int("blocks", stats.Blocks))
	return stats, nil
}

func (b *Builder) capacity() int {
	if b.sealer != nil {
		return b.sealer.Capacity()
	}
	return block.LegacyCapacity
}

func (b *Builder) seal(content []byte) ([]byte, error) {
	if b.sealer != nil {
		return b.sealer.Seal(content)
	}
	return block.Frame(content)
}

// writeReserved writes the verification block and the pad blocks. Pad
// material is supplied by the device, so pad blocks are left erased.
func (b *Builder) writeReserved(w *cursor) error {
	first := block.Filler()
	if b.verifier != nil {
		first = VerificationBlock(b.cfg, *b.verifier)
		b.logger.Debug("PIN verification block written", "block", w.n)
	}
	if err := w.write(first); err != nil {
		return err
	}
	for i := 1; i < b.cfg.ReservedBlocks; i++ {
		if err := w.write(block.Filler()); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writeSettings(w *cursor) error {
	var s record.Settings
	if b.settings != nil {
		s = *b.settings
	}
	blk, err := b.sealer.Seal(record.WithHeader(record.ContentSettings, s.Encode()))
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	b.logger.Debug("settings written", "block", w.n)
	return w.write(blk)
}

// VerificationBlock lays out the PIN verifier:
//
//	[format:2 LE][0xFF to PadBytes][id_hash:32][master_hash:32][0xFF to end]
func VerificationBlock(cfg Config, v pin.Verifier) []byte {
	blk := block.Filler()
	binary.LittleEndian.PutUint16(blk, VerifierFormat)
	copy(blk[cfg.PadBytes:], v.ID[:])
	copy(blk[cfg.PadBytes+pin.HashSize:], v.Master[:])
	return blk
}

// ParseVerificationBlock is the inverse of VerificationBlock. It reports
// false when blk does not have the verifier layout.
func ParseVerificationBlock(cfg Config, blk []byte) (pin.Verifier, bool) {
	var v pin.Verifier
	if len(blk) != block.Size || binary.LittleEndian.Uint16(blk) != VerifierFormat {
		return v, false
	}
	end := cfg.PadBytes + 2*pin.HashSize
	if !erased(blk[2:cfg.PadBytes]) || !erased(blk[end:]) {
		return v, false
	}
	copy(v.ID[:], blk[cfg.PadBytes:])
	copy(v.Master[:], blk[cfg.PadBytes+pin.HashSize:])
	return v, true
}

func erased(b []byte) bool {
	for _, c := range b {
		if c != block.FillerByte {
			return false
		}
	}
	return true
}

// cursor is the monotonic write position in the image.
type cursor struct {
	sink storage.Sink
	n    int
}

func (c *cursor) write(blk []byte) error {
	if len(blk) != block.Size {
		panic(fmt.Sprintf("layout: block %d has %d bytes", c.n, len(blk)))
	}
	if err := c.sink.WriteBlock(blk); err != nil {
		return fmt.Errorf("writing block %d: %w", c.n, err)
	}
	c.n++
	return nil
}
