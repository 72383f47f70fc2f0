package util

import (
	"encoding/base32"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Base32Encode uses the RFC 4648 alphabet with padding, the form the
// firmware prints keys in.
func Base32Encode(b []byte) string {
	return base32.StdEncoding.EncodeToString(b)
}

// Base32Decode accepts upper or lower case and tolerates missing padding
// and embedded spaces, as produced by authenticator apps.
func Base32Decode(s string) ([]byte, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	s = strings.TrimRight(s, "=")
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}
