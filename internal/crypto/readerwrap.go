package icrypto

import (
	"fmt"

	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the size of record keys and reader shared keys.
	KeySize = 32
	// TagSize is the Poly1305 authenticator appended by secretbox.
	TagSize = secretbox.Overhead
	// WrappedKeySize is the size of one sealed record key.
	WrappedKeySize = KeySize + TagSize
)

// PrecomputeShared computes the NaCl box shared key between a private and a
// public key. Writer and reader arrive at the same key from their own side.
func PrecomputeShared(peerPublic, private *[32]byte) [KeySize]byte {
	var shared [KeySize]byte
	box.Precompute(&shared, peerPublic, private)
	return shared
}

// SealToReader wraps a record key for the reader at position index.
func SealToReader(shared *[KeySize]byte, base [NonceSize]byte, index int, recordKey *[KeySize]byte) []byte {
	nonce := ReaderNonce(base, index)
	return secretbox.Seal(make([]byte, 0, WrappedKeySize), recordKey[:], &nonce, shared)
}

// OpenFromReader unwraps a record key sealed with SealToReader.
func OpenFromReader(shared *[KeySize]byte, base [NonceSize]byte, index int, wrapped []byte) ([KeySize]byte, error) {
	var rk [KeySize]byte
	if len(wrapped) != WrappedKeySize {
		return rk, fmt.Errorf("wrapped key has %d bytes, want %d", len(wrapped), WrappedKeySize)
	}
	nonce := ReaderNonce(base, index)
	opened, ok := secretbox.Open(nil, wrapped, &nonce, shared)
	if !ok {
		return rk, fmt.Errorf("opening wrapped record key failed")
	}
	copy(rk[:], opened)
	return rk, nil
}
