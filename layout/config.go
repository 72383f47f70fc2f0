package layout

import (
	"fmt"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/pin"
)

const (
	DefaultStorageBlocks  = 2048
	DefaultReservedBlocks = 8
	DefaultPadBytes       = 256

	// VerifierFormat is the marker at the start of the PIN verification block.
	VerifierFormat = 0
)

// Config is the storage geometry. It is fixed for the lifetime of a Builder.
type Config struct {
	// StorageBlocks is the total number of blocks in an image.
	StorageBlocks int `yaml:"storage_blocks"`
	// ReservedBlocks is the prefix holding the PIN verification block and
	// the pad blocks. Only enveloped images have it.
	ReservedBlocks int `yaml:"reserved_blocks"`
	// PadBytes is where the verifier hashes start in the verification block.
	PadBytes int `yaml:"pad_bytes"`
}

// DefaultConfig returns the geometry of the device flash.
func DefaultConfig() Config {
	return Config{
		StorageBlocks:  DefaultStorageBlocks,
		ReservedBlocks: DefaultReservedBlocks,
		PadBytes:       DefaultPadBytes,
	}
}

// Validate checks that the geometry can hold at least the reserved region and
// a settings block, and that the verifier hashes fit their block.
func (c Config) Validate() error {
	if c.ReservedBlocks < 1 {
		return fmt.Errorf("reserved blocks must be at least 1, got %d", c.ReservedBlocks)
	}
	if c.StorageBlocks < c.ReservedBlocks+1 {
		return fmt.Errorf("storage blocks (%d) must exceed reserved blocks (%d)", c.StorageBlocks, c.ReservedBlocks)
	}
	if c.PadBytes < 2 || c.PadBytes > block.Size-2*pin.HashSize {
		return fmt.Errorf("pad bytes must be between 2 and %d, got %d", block.Size-2*pin.HashSize, c.PadBytes)
	}
	return nil
}

// ImageSize is the size of a complete image in bytes.
func (c Config) ImageSize() int {
	return c.StorageBlocks * block.Size
}
