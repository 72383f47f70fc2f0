package util

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/curve25519"
)

func TestX25519(t *testing.T) {
	kpA, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("GenerateX25519Keypair A failed: %v", err)
	}

	kpB, err := GenerateX25519Keypair()
	if err != nil {
		t.Fatalf("GenerateX25519Keypair B failed: %v", err)
	}

	secretAB := ScalarMult(kpA.Private, kpB.Public)
	secretBA := ScalarMult(kpB.Private, kpA.Public)

	if secretAB != secretBA {
		t.Errorf("shared secrets do not match: %x != %x", secretAB, secretBA)
	}

	if derived := KeyPairFromPrivate(kpA.Private); derived.Public != kpA.Public {
		t.Errorf("KeyPairFromPrivate public mismatch: %x != %x", derived.Public, kpA.Public)
	}
}

func TestScalarMult(t *testing.T) {
	kpA, _ := GenerateX25519Keypair()
	kpB, _ := GenerateX25519Keypair()

	t.Run("MatchesX25519", func(t *testing.T) {
		want, err := curve25519.X25519(kpA.Private[:], kpB.Public[:])
		if err != nil {
			t.Fatalf("X25519 failed: %v", err)
		}
		if got := ScalarMult(kpA.Private, kpB.Public); !bytes.Equal(got[:], want) {
			t.Errorf("expected %x, got %x", want, got)
		}
	})

	t.Run("LowOrderPointYieldsZero", func(t *testing.T) {
		var zeroPoint [32]byte
		if got := ScalarMult(kpA.Private, zeroPoint); got != [32]byte{} {
			t.Errorf("expected all-zero output, got %x", got)
		}
	})

	t.Run("IgnoresPointTopBit", func(t *testing.T) {
		p := kpB.Public
		p[31] |= 0x80
		if ScalarMult(kpA.Private, p) != ScalarMult(kpA.Private, kpB.Public) {
			t.Error("top bit of the point should not affect the result")
		}
	})

	t.Run("UnclampedScalar", func(t *testing.T) {
		var n [32]byte
		for i := range n {
			n[i] = 0xAB
		}
		a := ScalarMult(n, kpB.Public)
		b := ScalarMult(n, kpB.Public)
		if a != b {
			t.Error("ScalarMult should be deterministic")
		}
	})
}

func TestBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("WipeBytes failed: %v", b)
	}

	a := [32]byte{1, 2, 3}
	WipeArray32(&a)
	if a != [32]byte{} {
		t.Errorf("WipeArray32 failed: %v", a)
	}

	f := make([]byte, 4)
	Fill(f, 0xFF)
	if !bytes.Equal(f, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Errorf("Fill failed: %v", f)
	}
}

func TestEncoding(t *testing.T) {
	s := "test string"
	encoded := HexEncode([]byte(s))
	decoded, err := HexDecode(encoded)
	if err != nil {
		t.Fatalf("HexDecode failed: %v", err)
	}
	if string(decoded) != s {
		t.Errorf("expected %s, got %s", s, string(decoded))
	}

	normalized := Normalize("caf\u00e9")
	if normalized != "cafe\u0301" {
		t.Errorf("Normalize failed, got %q", normalized)
	}

	t.Run("Base32", func(t *testing.T) {
		raw := []byte("12345678901234567890")
		enc := Base32Encode(raw)
		if enc != "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" {
			t.Errorf("unexpected encoding %s", enc)
		}
		for _, in := range []string{enc, "gezdgnbvgy3tqojqgezdgnbvgy3tqojq", "GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ"} {
			got, err := Base32Decode(in)
			if err != nil {
				t.Fatalf("Base32Decode(%q) failed: %v", in, err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("Base32Decode(%q) = %x", in, got)
			}
		}

		pub := make([]byte, 32)
		got, err := Base32Decode(Base32Encode(pub))
		if err != nil {
			t.Fatalf("Base32Decode padded failed: %v", err)
		}
		if len(got) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(got))
		}

		if _, err := Base32Decode("not*base32"); err == nil {
			t.Error("expected error for invalid base32")
		}
	})
}

func TestRandom(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b2, _ := RandomBytes(32)
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("RandomBytes should produce different outputs")
	}

	n1, err := RandomArray24()
	if err != nil {
		t.Fatalf("RandomArray24 failed: %v", err)
	}
	n2, _ := RandomArray24()
	if n1 == n2 {
		t.Error("RandomArray24 should produce different outputs")
	}

	k1, err := RandomArray32()
	if err != nil {
		t.Fatalf("RandomArray32 failed: %v", err)
	}
	k2, _ := RandomArray32()
	if k1 == k2 {
		t.Error("RandomArray32 should produce different outputs")
	}
}
