// Package crypto holds the key types used by the image encoder: X25519
// writer and reader keys and the device secret.
package crypto

import (
	"fmt"

	"github.com/jmcleod/accenc/internal/util"
)

// KeyPair holds an X25519 public/private key pair.
type KeyPair = util.KeyPair

// PublicKey identifies a reader.
type PublicKey = [32]byte

// KeySize is the length of raw X25519 keys.
const KeySize = 32

// GenerateX25519Keypair generates a new X25519 key pair.
func GenerateX25519Keypair() (KeyPair, error) {
	return util.GenerateX25519Keypair()
}

// KeyPairFromPrivate derives the public key for a raw private key.
func KeyPairFromPrivate(priv [KeySize]byte) KeyPair {
	return util.KeyPairFromPrivate(priv)
}

// EncodeKey renders a raw key in base32, the format accepted on the command
// line and in config files.
func EncodeKey(k [KeySize]byte) string {
	return util.Base32Encode(k[:])
}

// DecodeKey parses a base32 key and checks its length.
func DecodeKey(s string) ([KeySize]byte, error) {
	var k [KeySize]byte
	raw, err := util.Base32Decode(s)
	if err != nil {
		return k, fmt.Errorf("decoding key: %w", err)
	}
	defer util.WipeBytes(raw)
	if len(raw) != KeySize {
		return k, fmt.Errorf("key has %d bytes, want %d", len(raw), KeySize)
	}
	copy(k[:], raw)
	return k, nil
}

// ParsePrivateKey decodes a base32 private key and derives its key pair.
func ParsePrivateKey(s string) (KeyPair, error) {
	priv, err := DecodeKey(s)
	if err != nil {
		return KeyPair{}, fmt.Errorf("parsing private key: %w", err)
	}
	defer util.WipeArray32(&priv)
	return util.KeyPairFromPrivate(priv), nil
}

// ParsePublicKey decodes a base32 reader public key.
func ParsePublicKey(s string) (PublicKey, error) {
	pub, err := DecodeKey(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parsing public key: %w", err)
	}
	return pub, nil
}
