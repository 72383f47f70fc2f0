package block

import (
	"fmt"

	icrypto "github.com/jmcleod/accenc/internal/crypto"
	"github.com/jmcleod/accenc/internal/util"
	"github.com/jmcleod/accenc/record"
)

const (
	legacyNoncePad  = 8
	legacyHashSize  = 20
	legacyHashPad   = 12
	legacyHashByte  = 0x55
	legacyHashStart = Size - legacyHashSize - legacyHashPad

	// LegacyPayloadSize is the payload room after the content header.
	LegacyPayloadSize = legacyHashStart - NonceSize - legacyNoncePad - record.HeaderSize
)

// LegacyCapacity is the largest content (header included) a legacy block
// carries.
const LegacyCapacity = record.HeaderSize + LegacyPayloadSize

// Frame lays out content in the legacy unencrypted format. The trailing hash
// field is a fixed 0x55 placeholder that the firmware does not check.
func Frame(content []byte) ([]byte, error) {
	if len(content) > LegacyCapacity {
		return nil, fmt.Errorf("content has %d bytes, room for %d: %w", len(content), LegacyCapacity, ErrCapacityExceeded)
	}
	nonce, err := icrypto.NewNonce()
	if err != nil {
		return nil, err
	}

	out := make([]byte, Size)
	copy(out, nonce[:])
	copy(out[NonceSize+legacyNoncePad:], content)
	util.Fill(out[legacyHashStart:], legacyHashByte)
	return out, nil
}

// IsFramed reports whether b has the fixed parts of a legacy block: the zero
// pad after the nonce and the placeholder hash.
func IsFramed(b []byte) bool {
	if len(b) != Size {
		return false
	}
	for _, c := range b[NonceSize : NonceSize+legacyNoncePad] {
		if c != 0 {
			return false
		}
	}
	for _, c := range b[legacyHashStart:] {
		if c != legacyHashByte {
			return false
		}
	}
	return true
}
