// Package pin derives the verifier hashes that bind a device secret to a PIN.
//
// The derivation mixes SHA-256 digests through raw X25519 scalar
// multiplication. The digests are fed in unvalidated as scalars and points;
// the firmware computes the same values and compares them, so the sequence
// of operations here is part of the storage format.
package pin

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jmcleod/accenc/internal/util"
)

// HashSize is the size of both verifier hashes.
const HashSize = sha256.Size

// SecretSize is the size of the device secret.
const SecretSize = 32

// MaxDigits is the longest PIN that fits the nibble encoding.
const MaxDigits = 8

// ErrInvalidPIN is returned by Parse for strings that are not a PIN.
var ErrInvalidPIN = errors.New("invalid PIN")

// Parse encodes a decimal PIN the way the device keypad does: starting from
// all ones, each digit is shifted in as a nibble. "1234" becomes 0xffff1234.
func Parse(s string) (uint32, error) {
	if len(s) == 0 || len(s) > MaxDigits {
		return 0, fmt.Errorf("PIN must have 1 to %d digits: %w", MaxDigits, ErrInvalidPIN)
	}
	pin := uint32(0xffffffff)
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("PIN contains %q: %w", c, ErrInvalidPIN)
		}
		pin = pin<<4 | uint32(c-'0')
	}
	return pin, nil
}

func hash(parts ...[]byte) [HashSize]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var res [HashSize]byte
	h.Sum(res[:0])
	return res
}

func pinBytes(pin uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, pin)
}

// MasterHash computes
//
//	a = H(pin), b = H(secret || a), c = H(a || secret)
//	return H(mult(b, c))
func MasterHash(secret *[SecretSize]byte, pin uint32) [HashSize]byte {
	a := hash(pinBytes(pin))
	b := hash(secret[:], a[:])
	c := hash(a[:], secret[:])
	m := util.ScalarMult(b, c)
	defer util.WipeArray32(&b)
	defer util.WipeArray32(&m)
	return hash(m[:])
}

// IDHash computes
//
//	a = H(pin), b = H(secret || pin)
//	c = mult(a, b), d = mult(b, a)
//	return H(H(c || d) || c)
func IDHash(secret *[SecretSize]byte, pin uint32) [HashSize]byte {
	p := pinBytes(pin)
	a := hash(p)
	b := hash(secret[:], p)
	c := util.ScalarMult(a, b)
	d := util.ScalarMult(b, a)
	e := hash(c[:], d[:])
	defer util.WipeArray32(&b)
	defer util.WipeArray32(&c)
	defer util.WipeArray32(&d)
	return hash(e[:], c[:])
}

// Verifier is the pair stored in the PIN verification block.
type Verifier struct {
	ID     [HashSize]byte
	Master [HashSize]byte
}

// NewVerifier computes both hashes for secret and pin.
func NewVerifier(secret *[SecretSize]byte, pin uint32) Verifier {
	return Verifier{
		ID:     IDHash(secret, pin),
		Master: MasterHash(secret, pin),
	}
}
