package block

import (
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jmcleod/accenc/crypto"
	icrypto "github.com/jmcleod/accenc/internal/crypto"
	"github.com/jmcleod/accenc/internal/util"
)

type reader struct {
	public crypto.PublicKey
	shared *memguard.Enclave
}

// Sealer writes enveloped blocks for one writer and a fixed list of readers.
// Shared keys are computed once and kept in memguard Enclaves; the writer's
// private key is not retained.
type Sealer struct {
	writer  crypto.PublicKey
	readers []reader
}

// NewSealer prepares a Sealer. With no readers the writer is the only reader.
func NewSealer(writer crypto.KeyPair, readers []crypto.PublicKey) (*Sealer, error) {
	if len(readers) == 0 {
		readers = []crypto.PublicKey{writer.Public}
	}
	if len(readers) > MaxReaders {
		return nil, fmt.Errorf("%d readers, limit %d: %w", len(readers), MaxReaders, ErrCapacityExceeded)
	}
	if Capacity(len(readers)) < 0 {
		return nil, fmt.Errorf("envelope for %d readers exceeds %d bytes: %w", len(readers), Size, ErrCapacityExceeded)
	}

	s := &Sealer{
		writer:  writer.Public,
		readers: make([]reader, 0, len(readers)),
	}
	priv := writer.Private
	defer util.WipeArray32(&priv)
	for _, pub := range readers {
		shared := icrypto.PrecomputeShared(&pub, &priv)
		s.readers = append(s.readers, reader{
			public: pub,
			shared: memguard.NewEnclave(shared[:]),
		})
	}
	return s, nil
}

// Readers returns the number of readers each block is sealed for.
func (s *Sealer) Readers() int {
	return len(s.readers)
}

// Capacity is the largest content this Sealer accepts.
func (s *Sealer) Capacity() int {
	return Capacity(len(s.readers))
}

// Seal encrypts content under a fresh record key and wraps that key for every
// reader. The result is always exactly Size bytes.
func (s *Sealer) Seal(content []byte) ([]byte, error) {
	if len(content) > s.Capacity() {
		return nil, fmt.Errorf("content has %d bytes, room for %d: %w", len(content), s.Capacity(), ErrCapacityExceeded)
	}

	rk, err := icrypto.NewRecordKey()
	if err != nil {
		return nil, err
	}
	defer util.WipeArray32(&rk)
	nonce, err := icrypto.NewNonce()
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, Size)
	out = append(out, s.writer[:]...)
	out = append(out, nonce[:]...)
	out = append(out, byte(len(s.readers)))
	for i, r := range s.readers {
		lb, err := r.shared.Open()
		if err != nil {
			return nil, fmt.Errorf("opening shared key: %w", err)
		}
		out = append(out, r.public[:]...)
		out = append(out, icrypto.SealToReader(lb.ByteArray32(), nonce, i+1, &rk)...)
		lb.Destroy()
	}

	padded := make([]byte, Size-len(out)-TagSize)
	defer util.WipeBytes(padded)
	copy(padded, content)
	out = secretbox.Seal(out, padded, &nonce, &rk)

	if len(out) != Size {
		panic(fmt.Sprintf("block: envelope is %d bytes, want %d", len(out), Size))
	}
	return out, nil
}
