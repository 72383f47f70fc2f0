package icrypto

import "github.com/jmcleod/accenc/internal/util"

// NewRecordKey returns a fresh random key for one block's payload.
func NewRecordKey() ([KeySize]byte, error) {
	return util.RandomArray32()
}

// NewNonce returns a fresh random base nonce for one block.
func NewNonce() ([NonceSize]byte, error) {
	return util.RandomArray24()
}
