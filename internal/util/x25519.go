package util

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

func GenerateX25519Keypair() (KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return KeyPair{}, fmt.Errorf("error generating random bytes for X25519 private key: %w", err)
	}

	// Clamp the private key (the firmware stores keys clamped)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	return KeyPairFromPrivate(priv), nil
}

// KeyPairFromPrivate derives the public half for an existing private scalar.
func KeyPairFromPrivate(priv [32]byte) KeyPair {
	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return KeyPair{
		Private: priv,
		Public:  pub,
	}
}

// ScalarMult is the raw X25519 function with no rejection of low-order
// points: n is clamped, the top bit of p is ignored, and an all-zero result
// is returned as-is. It matches NaCl's crypto_scalarmult bit for bit.
func ScalarMult(n, p [32]byte) [32]byte {
	var res [32]byte
	out, err := curve25519.X25519(n[:], p[:])
	if err != nil {
		// X25519 only fails on the all-zero output, which is what
		// crypto_scalarmult would have produced.
		return res
	}
	copy(res[:], out)
	return res
}
