package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/config"
	"github.com/jmcleod/accenc/crypto"
	"github.com/jmcleod/accenc/internal/uuid"
	"github.com/jmcleod/accenc/layout"
	boltarchive "github.com/jmcleod/accenc/storage/bbolt"
)

var zeroSecret = strings.Repeat("00", 32)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEncode_LegacyToStdout(t *testing.T) {
	f := config.Default()
	f.Layout = testConfig()

	var out bytes.Buffer
	require.NoError(t, encode(f, testRecords(t, 2), &out, discardLogger()))
	require.Equal(t, 16*block.Size, out.Len())

	data := out.Bytes()
	assert.True(t, block.IsFramed(data[:block.Size]))
	assert.True(t, block.IsFramed(data[block.Size:2*block.Size]))
	for n := 2; n < 16; n++ {
		assert.True(t, block.IsFiller(data[n*block.Size:(n+1)*block.Size]), "block %d", n)
	}
}

func TestEncode_CapacityWritesNothing(t *testing.T) {
	dir := t.TempDir()
	f := config.Default()
	f.Layout = testConfig()
	f.Output = filepath.Join(dir, "image.bin")
	f.Archive = filepath.Join(dir, "images.db")

	var out bytes.Buffer
	err := encode(f, testRecords(t, 17), &out, discardLogger())
	assert.ErrorIs(t, err, layout.ErrCapacityExceeded)
	assert.Zero(t, out.Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no image or archive may be created")
}

func TestEncode_InvalidConfig(t *testing.T) {
	f := config.Default()
	f.Readers = []string{"AAAA"}
	var out bytes.Buffer
	assert.Error(t, encode(f, nil, &out, discardLogger()))
	assert.Zero(t, out.Len())
}

func TestKeygen(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generateKeyPair(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	priv := strings.TrimSpace(strings.TrimPrefix(lines[0], "private:"))
	pub := strings.TrimSpace(strings.TrimPrefix(lines[1], "public:"))

	derived, err := publicKeyFor(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, derived)

	_, err = publicKeyFor("not a key")
	assert.Error(t, err)
}

func TestKeygen_DeviceSecret(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generateDeviceSecret(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	hex := strings.TrimSpace(strings.TrimPrefix(lines[0], "hex:"))
	words := strings.TrimSpace(strings.TrimPrefix(lines[1], "mnemonic:"))
	assert.Len(t, hex, 64)
	assert.Len(t, strings.Fields(words), 24)

	fromHex, err := crypto.ParseDeviceSecret(hex)
	require.NoError(t, err)
	fromWords, err := crypto.ParseDeviceSecret(words)
	require.NoError(t, err)
	var a, b [crypto.DeviceSecretSize]byte
	require.NoError(t, fromHex.With(func(s *[crypto.DeviceSecretSize]byte) { a = *s }))
	require.NoError(t, fromWords.With(func(s *[crypto.DeviceSecretSize]byte) { b = *s }))
	assert.Equal(t, a, b)
}

func TestReadLine(t *testing.T) {
	line, err := readLine(strings.NewReader("  KEY  \nrest\n"))
	require.NoError(t, err)
	assert.Equal(t, "KEY", line)

	_, err = readLine(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPrintHashes(t *testing.T) {
	f := config.Default()
	f.Secret = zeroSecret
	f.PIN = "1234"

	var buf bytes.Buffer
	require.NoError(t, printHashes(&buf, f))
	v := testVerifier()
	assert.Contains(t, buf.String(), "id_hash:     "+bytesHex(v.ID[:]))
	assert.Contains(t, buf.String(), "master_hash: "+bytesHex(v.Master[:]))

	f.PIN = ""
	assert.Error(t, printHashes(&buf, f))
}

func bytesHex(b []byte) string {
	const digits = "0123456789abcdef"
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(digits[c>>4])
		sb.WriteByte(digits[c&0xf])
	}
	return sb.String()
}

func TestPrintImageTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printImageTable(&buf, nil))
	assert.Equal(t, "ID  CREATED  MODE  RECORDS  READERS  BLOCKS\n", buf.String())
}

// TestEndToEnd runs the encoder, the archive export and the checker through
// the command tree.
func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writer, err := crypto.GenerateX25519Keypair()
	require.NoError(t, err)
	reader, err := crypto.GenerateX25519Keypair()
	require.NoError(t, err)

	db := filepath.Join(dir, "db.json")
	require.NoError(t, os.WriteFile(db, []byte(`# test accounts
[
	{"id": "mail", "user": "alice", "pw": "secret"},
	{"id": "bank", "totp_secret": "GEZDGNBVGY3TQOJQ", "hotp_counter": 7}
]
`), 0o600))
	image := filepath.Join(dir, "image.bin")
	archive := filepath.Join(dir, "images.db")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetErr(nil)

	rootCmd.SetArgs([]string{
		"--key", crypto.EncodeKey(writer.Private),
		"--reader", crypto.EncodeKey(writer.Public),
		"--reader", crypto.EncodeKey(reader.Public),
		"--secret", zeroSecret,
		"--pin", "1234",
		"--crosshair",
		"--output", image,
		"--archive", archive,
		db,
	})
	require.NoError(t, rootCmd.Execute())
	assert.Zero(t, stdout.Len(), "image goes to --output")
	assert.Contains(t, stderr.String(), "image written")
	assert.Contains(t, stderr.String(), "image archived")

	data, err := os.ReadFile(image)
	require.NoError(t, err)
	require.Len(t, data, layout.DefaultConfig().ImageSize())

	want := testVerifier()
	report := checkImage(data, layout.DefaultConfig(), layout.ModeEnveloped, &want)
	assert.True(t, report.Valid, "%+v", report.Checks)
	assert.Equal(t, 2, report.Records)

	a, err := boltarchive.OpenArchive(archive, nil)
	require.NoError(t, err)
	infos, err := a.List()
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.Len(t, infos, 1)
	assert.True(t, uuid.Valid(infos[0].ID))
	assert.Equal(t, "enveloped", infos[0].Mode)
	assert.Equal(t, 2, infos[0].Records)
	assert.Equal(t, 2, infos[0].Readers)
	assert.Equal(t, 2048, infos[0].Blocks)

	exported := filepath.Join(dir, "exported.bin")
	rootCmd.SetArgs([]string{"archive", "export", "--archive", archive, "-o", exported, infos[0].ID})
	require.NoError(t, rootCmd.Execute())
	got, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	stdout.Reset()
	rootCmd.SetArgs([]string{"check", "--json", image})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, stdout.String(), `"valid": true`)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	printBanner(&buf)
	assert.Contains(t, buf.String(), "Account Image Encoder - Version "+Version)
}
