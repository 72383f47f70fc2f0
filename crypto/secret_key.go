package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/tyler-smith/go-bip39"

	"github.com/jmcleod/accenc/internal/util"
)

// DeviceSecretSize is the length of the device secret.
const DeviceSecretSize = 32

// ErrSecretDestroyed is returned when a destroyed DeviceSecret is used.
var ErrSecretDestroyed = errors.New("device secret destroyed")

// DeviceSecret is the per-device secret bound to the PIN by the verifier
// hashes. The bytes live in a memguard Enclave (encrypted at rest in memory).
// Call Destroy() when done.
type DeviceSecret struct {
	enclave *memguard.Enclave
}

// NewDeviceSecret generates a random device secret.
func NewDeviceSecret() (*DeviceSecret, error) {
	b, err := util.RandomBytes(DeviceSecretSize)
	if err != nil {
		return nil, fmt.Errorf("generating device secret: %w", err)
	}
	return &DeviceSecret{enclave: memguard.NewEnclave(b)}, nil
}

// DeviceSecretFromBytes copies raw into a new DeviceSecret and wipes raw.
func DeviceSecretFromBytes(raw []byte) (*DeviceSecret, error) {
	if len(raw) != DeviceSecretSize {
		util.WipeBytes(raw)
		return nil, fmt.Errorf("device secret has %d bytes, want %d", len(raw), DeviceSecretSize)
	}
	return &DeviceSecret{enclave: memguard.NewEnclave(raw)}, nil
}

// ParseDeviceSecret accepts either a 24-word BIP39 mnemonic, as the device
// shows it, or 64 hex digits.
func ParseDeviceSecret(s string) (*DeviceSecret, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t\n") {
		words := strings.Fields(util.Normalize(strings.ToLower(s)))
		entropy, err := bip39.EntropyFromMnemonic(strings.Join(words, " "))
		if err != nil {
			return nil, fmt.Errorf("parsing device secret mnemonic: %w", err)
		}
		return DeviceSecretFromBytes(entropy)
	}
	raw, err := util.HexDecode(s)
	if err != nil {
		return nil, fmt.Errorf("parsing device secret hex: %w", err)
	}
	return DeviceSecretFromBytes(raw)
}

// With calls fn with the unsealed secret. The buffer is destroyed when fn
// returns and must not be retained.
func (d *DeviceSecret) With(fn func(secret *[DeviceSecretSize]byte)) error {
	if d == nil || d.enclave == nil {
		return ErrSecretDestroyed
	}
	lb, err := d.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening device secret: %w", err)
	}
	defer lb.Destroy()
	fn(lb.ByteArray32())
	return nil
}

// Mnemonic renders the secret as a 24-word BIP39 phrase.
func (d *DeviceSecret) Mnemonic() (string, error) {
	var (
		words string
		err   error
	)
	openErr := d.With(func(secret *[DeviceSecretSize]byte) {
		words, err = bip39.NewMnemonic(secret[:])
	})
	if openErr != nil {
		return "", openErr
	}
	if err != nil {
		return "", fmt.Errorf("encoding mnemonic: %w", err)
	}
	return words, nil
}

// Destroy drops the sealed secret. After calling Destroy, the DeviceSecret
// must not be reused.
func (d *DeviceSecret) Destroy() {
	if d == nil {
		return
	}
	d.enclave = nil
}
