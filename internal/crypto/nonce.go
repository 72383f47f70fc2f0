package icrypto

// NonceSize is the XSalsa20-Poly1305 nonce length.
const NonceSize = 24

// ReaderNonce derives the nonce for the i-th reader wrap (1-indexed): the
// base nonce with its first byte XORed with i. Index 0 would be the base
// nonce itself, which seals the record body.
func ReaderNonce(base [NonceSize]byte, i int) [NonceSize]byte {
	if i < 1 || i > 255 {
		panic("icrypto: reader index out of range")
	}
	n := base
	n[0] ^= byte(i)
	return n
}
