package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/crypto"
	"github.com/jmcleod/accenc/layout"
	"github.com/jmcleod/accenc/pin"
	"github.com/jmcleod/accenc/record"
	"github.com/jmcleod/accenc/storage/memory"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testConfig() layout.Config {
	return layout.Config{StorageBlocks: 16, ReservedBlocks: 8, PadBytes: 256}
}

func testVerifier() pin.Verifier {
	var secret [pin.SecretSize]byte
	return pin.NewVerifier(&secret, 0xffff1234)
}

func testRecords(t *testing.T, n int) []record.Record {
	t.Helper()
	records := make([]record.Record, n)
	for i := range records {
		r, err := record.New(record.ID(strings.Repeat("x", i+1)), record.Password("pw"))
		require.NoError(t, err)
		records[i] = r
	}
	return records
}

// buildImage returns the bytes of an image with n records.
func buildImage(t *testing.T, n int, opts ...layout.Option) []byte {
	t.Helper()
	b, err := layout.New(testConfig(), opts...)
	require.NoError(t, err)
	img := memory.NewImage()
	_, err = b.Build(testRecords(t, n), img)
	require.NoError(t, err)
	return img.Bytes()
}

func envelopedImage(t *testing.T, n int) []byte {
	t.Helper()
	kp, err := crypto.GenerateX25519Keypair()
	require.NoError(t, err)
	s, err := block.NewSealer(kp, nil)
	require.NoError(t, err)
	return buildImage(t, n, layout.WithSealer(s), layout.WithVerifier(testVerifier()))
}

func statusOf(report checkReport, name string) string {
	for _, c := range report.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	return ""
}

func setBlock(data []byte, n int, blk []byte) {
	copy(data[n*block.Size:], blk)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCheck_Enveloped(t *testing.T) {
	data := envelopedImage(t, 3)
	want := testVerifier()
	report := checkImage(data, testConfig(), layout.ModeEnveloped, &want)

	assert.True(t, report.Valid)
	assert.Equal(t, 16, report.Blocks)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, "enveloped", report.Mode)
	for _, name := range []string{"image_size", "pin_verifier", "pad_blocks", "settings_block", "contiguous_records"} {
		assert.Equal(t, "pass", statusOf(report, name), name)
	}
	assert.Empty(t, statusOf(report, "legacy_framing"))
}

func TestCheck_VerifierNotChecked(t *testing.T) {
	report := checkImage(envelopedImage(t, 0), testConfig(), layout.ModeEnveloped, nil)
	assert.True(t, report.Valid)
	assert.Equal(t, 0, report.Records)
	assert.Equal(t, "pass", statusOf(report, "pin_verifier"))
}

func TestCheck_WrongPIN(t *testing.T) {
	var secret [pin.SecretSize]byte
	other := pin.NewVerifier(&secret, 0xffff1235)
	report := checkImage(envelopedImage(t, 1), testConfig(), layout.ModeEnveloped, &other)
	assert.False(t, report.Valid)
	assert.Equal(t, "fail", statusOf(report, "pin_verifier"))
}

func TestCheck_NoVerifier(t *testing.T) {
	kp, err := crypto.GenerateX25519Keypair()
	require.NoError(t, err)
	s, err := block.NewSealer(kp, nil)
	require.NoError(t, err)
	data := buildImage(t, 1, layout.WithSealer(s))

	report := checkImage(data, testConfig(), layout.ModeEnveloped, nil)
	assert.True(t, report.Valid)
	assert.Equal(t, "warn", statusOf(report, "pin_verifier"))
}

func TestCheck_Tampered(t *testing.T) {
	tests := []struct {
		name  string
		edit  func([]byte) []byte
		check string
	}{
		{"Truncated", func(d []byte) []byte { return d[:len(d)-block.Size] }, "image_size"},
		{"PartialBlock", func(d []byte) []byte { return d[:len(d)-1] }, "image_size"},
		{"PadBlock", func(d []byte) []byte { d[3*block.Size] = 0; return d }, "pad_blocks"},
		{"SettingsErased", func(d []byte) []byte { setBlock(d, 8, block.Filler()); return d }, "settings_block"},
		{"VerifierGarbled", func(d []byte) []byte { d[0] = 7; return d }, "pin_verifier"},
		{"Gap", func(d []byte) []byte { setBlock(d, 10, block.Filler()); return d }, "contiguous_records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.edit(envelopedImage(t, 3))
			report := checkImage(data, testConfig(), layout.ModeEnveloped, nil)
			assert.False(t, report.Valid)
			assert.Equal(t, "fail", statusOf(report, tt.check))
		})
	}
}

func TestCheck_TooShortForReserved(t *testing.T) {
	data := envelopedImage(t, 0)[:4*block.Size]
	report := checkImage(data, testConfig(), layout.ModeEnveloped, nil)
	assert.False(t, report.Valid)
	assert.Equal(t, "fail", statusOf(report, "reserved_region"))
}

func TestCheck_Legacy(t *testing.T) {
	data := buildImage(t, 4)
	report := checkImage(data, testConfig(), layout.ModeLegacy, nil)
	assert.True(t, report.Valid)
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, "pass", statusOf(report, "legacy_framing"))
	assert.Empty(t, statusOf(report, "pin_verifier"))

	data[2*block.Size+block.Size-1] = 0
	report = checkImage(data, testConfig(), layout.ModeLegacy, nil)
	assert.False(t, report.Valid)
	assert.Equal(t, "fail", statusOf(report, "legacy_framing"))
}

func TestPrintHumanReport(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var buf bytes.Buffer
	printHumanReport(&buf, checkReport{
		File:   "image.bin",
		Mode:   "enveloped",
		Blocks: 2048,
		Valid:  false,
		Checks: []checkResult{
			{Name: "image_size", Status: "pass", Detail: "2048 blocks"},
			{Name: "pin_verifier", Status: "warn", Detail: "no PIN verification block"},
			{Name: "pad_blocks", Status: "fail", Detail: "reserved block 2 is not filler"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Image check: image.bin")
	assert.Contains(t, out, "[PASS] image_size: 2048 blocks")
	assert.Contains(t, out, "[WARN] pin_verifier")
	assert.Contains(t, out, "[FAIL] pad_blocks")
	assert.Contains(t, out, "Result: INVALID (1 error(s), 1 warning(s))")
}
