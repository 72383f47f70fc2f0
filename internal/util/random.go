package util

import (
	"crypto/rand"
	"fmt"
)

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// RandomArray24 fills a nonce-sized array from the system CSPRNG.
func RandomArray24() ([24]byte, error) {
	var a [24]byte
	if _, err := rand.Read(a[:]); err != nil {
		return a, fmt.Errorf("generating random bytes: %w", err)
	}
	return a, nil
}

func RandomArray32() ([32]byte, error) {
	var a [32]byte
	if _, err := rand.Read(a[:]); err != nil {
		return a, fmt.Errorf("generating random bytes: %w", err)
	}
	return a, nil
}
