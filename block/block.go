// Package block produces the fixed-size blocks of a storage image.
//
// Enveloped block layout:
//
//	Offset  Size
//	0       32      Writer's public key
//	32      24      Nonce
//	56      1       Number of readers (N)
//	57      N*80    For each reader:
//	          32      Reader's public key
//	          48      Record key, sealed with Shared(writer, reader)
//	...     *       Content sealed with the record key, zero-padded so that
//	                the block is exactly Size bytes (16 bytes of tag included)
//
// Legacy (unencrypted) block layout:
//
//	0       24      Random nonce
//	24      8       Zero
//	32      4       Content header
//	36      956     Payload, zero-padded
//	992     20      Hash placeholder (0x55)
//	1012    12      Hash padding (0x55)
package block

import (
	"bytes"

	icrypto "github.com/jmcleod/accenc/internal/crypto"
	"github.com/jmcleod/accenc/record"
)

const (
	// Size is the size of every block in an image.
	Size = 1024

	NonceSize      = icrypto.NonceSize
	PublicKeySize  = 32
	WrappedKeySize = icrypto.WrappedKeySize
	TagSize        = icrypto.TagSize

	// MaxReaders is the limit of the one-byte reader count.
	MaxReaders = 255

	// FillerByte marks erased storage.
	FillerByte = 0xFF

	envelopeHeaderSize = PublicKeySize + NonceSize + 1
	readerEntrySize    = PublicKeySize + WrappedKeySize
)

// ErrCapacityExceeded is returned when content does not fit in one block.
var ErrCapacityExceeded = record.ErrCapacityExceeded

// Overhead is the number of bytes an envelope for n readers adds to its
// content.
func Overhead(readers int) int {
	return envelopeHeaderSize + readers*readerEntrySize + TagSize
}

// Capacity is the largest content an envelope for n readers can carry.
func Capacity(readers int) int {
	return Size - Overhead(readers)
}

var filler = bytes.Repeat([]byte{FillerByte}, Size)

// Filler returns an erased block.
func Filler() []byte {
	return bytes.Clone(filler)
}

// IsFiller reports whether b is an erased block.
func IsFiller(b []byte) bool {
	return bytes.Equal(b, filler)
}
