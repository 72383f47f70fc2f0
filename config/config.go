// Package config loads encoder settings from a YAML file. Command-line flags
// are merged on top of the file by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/crypto"
	"github.com/jmcleod/accenc/internal/util"
	"github.com/jmcleod/accenc/layout"
	"github.com/jmcleod/accenc/pin"
	"github.com/jmcleod/accenc/record"
)

// File is the on-disk configuration.
type File struct {
	// Key is the writer's base32 X25519 private key. Without it images are
	// written in legacy mode.
	Key string `yaml:"key"`
	// Readers are base32 X25519 public keys allowed to open records.
	Readers []string `yaml:"readers"`
	// Secret is the device secret, as 64 hex characters or a 24-word mnemonic.
	Secret string `yaml:"secret"`
	// PIN is the device PIN, 1 to 8 digits.
	PIN string `yaml:"pin"`
	// Settings, when present, override the all-off defaults.
	Settings *record.Settings `yaml:"settings"`
	Layout   layout.Config    `yaml:"layout"`
	// Output is the image path. Empty means stdout.
	Output string `yaml:"output"`
	// Archive is a BBolt file path or a postgres:// DSN.
	Archive string `yaml:"archive"`
}

// Default returns a File with the device geometry and nothing else set.
func Default() File {
	return File{Layout: layout.DefaultConfig()}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default.
func Parse(data []byte) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parsing config: %w", err)
	}
	return f, nil
}

// Validate checks that the options fit together.
func (f File) Validate() error {
	if err := f.Layout.Validate(); err != nil {
		return err
	}
	if (f.Secret == "") != (f.PIN == "") {
		return errors.New("device secret and PIN must be given together")
	}
	if f.Key == "" {
		if len(f.Readers) > 0 {
			return errors.New("reader keys need a writer key")
		}
		if f.Secret != "" {
			return errors.New("a PIN verifier needs a writer key")
		}
		if f.Settings != nil {
			return errors.New("settings need a writer key")
		}
	}
	return nil
}

// Mode reports which image format the configuration produces.
func (f File) Mode() layout.Mode {
	if f.Key == "" {
		return layout.ModeLegacy
	}
	return layout.ModeEnveloped
}

// Builder validates f, decodes its keys and returns a layout.Builder for it.
func (f File) Builder(logger *slog.Logger) (*layout.Builder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	opts := []layout.Option{layout.WithLogger(logger)}
	if f.Key != "" {
		sealer, err := f.sealer()
		if err != nil {
			return nil, err
		}
		opts = append(opts, layout.WithSealer(sealer))
	}
	if f.Secret != "" {
		v, err := f.Verifier()
		if err != nil {
			return nil, err
		}
		opts = append(opts, layout.WithVerifier(v))
	}
	if f.Settings != nil {
		opts = append(opts, layout.WithSettings(*f.Settings))
	}
	return layout.New(f.Layout, opts...)
}

func (f File) sealer() (*block.Sealer, error) {
	writer, err := crypto.ParsePrivateKey(f.Key)
	if err != nil {
		return nil, fmt.Errorf("writer key: %w", err)
	}
	defer util.WipeArray32(&writer.Private)

	readers := make([]crypto.PublicKey, 0, len(f.Readers))
	for i, s := range f.Readers {
		pub, err := crypto.ParsePublicKey(s)
		if err != nil {
			return nil, fmt.Errorf("reader key %d: %w", i+1, err)
		}
		readers = append(readers, pub)
	}
	return block.NewSealer(writer, readers)
}

// Verifier derives the PIN verifier hashes from Secret and PIN.
func (f File) Verifier() (pin.Verifier, error) {
	p, err := pin.Parse(f.PIN)
	if err != nil {
		return pin.Verifier{}, err
	}
	secret, err := crypto.ParseDeviceSecret(f.Secret)
	if err != nil {
		return pin.Verifier{}, err
	}
	defer secret.Destroy()

	var v pin.Verifier
	err = secret.With(func(s *[crypto.DeviceSecretSize]byte) {
		v = pin.NewVerifier(s, p)
	})
	return v, err
}
