package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/accenc/config"
	"github.com/jmcleod/accenc/input"
	"github.com/jmcleod/accenc/internal/uuid"
	"github.com/jmcleod/accenc/layout"
	"github.com/jmcleod/accenc/record"
	"github.com/jmcleod/accenc/storage"
	"github.com/jmcleod/accenc/storage/memory"
	"github.com/jmcleod/accenc/storage/stream"
)

var (
	configPath string
	verbose    bool

	writerKey  string
	readerKeys []string
	secret     string
	pinDigits  string
	outputPath string
	archiveLoc string
	crosshair  bool
	strictRMT  bool
)

var rootCmd = &cobra.Command{
	Use:   "accenc [db.json]",
	Short: "accenc encodes account records into a device storage image",
	Long: `Reads a JSON list of account records and writes a fixed-size storage image
for the device: 2048 blocks of 1024 bytes.

With --key every block is encrypted for each reader given with --reader (or
for the writer alone when none are given), and the image carries a PIN
verification block and a settings block. Without --key the image is written
in the legacy unencrypted format.

The image is written to stdout unless --output is given. Logs go to stderr.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runEncode,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every block written")

	f := rootCmd.Flags()
	f.StringVarP(&writerKey, "key", "k", "", "Writer private key (base32); enables encryption")
	f.StringArrayVarP(&readerKeys, "reader", "r", nil, "Reader public key (base32), repeatable")
	f.StringVar(&secret, "secret", "", "Device secret (64 hex digits or 24-word mnemonic)")
	f.StringVar(&pinDigits, "pin", "", "Device PIN (1 to 8 digits)")
	f.StringVarP(&outputPath, "output", "o", "", "Write the image to this file instead of stdout")
	f.StringVar(&archiveLoc, "archive", "", "Also store the image in this BBolt file or postgres:// database")
	f.BoolVar(&crosshair, "crosshair", false, "Enable the tap crosshair setting")
	f.BoolVar(&strictRMT, "strict-rmt", false, "Enable the strict remote protocol setting")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config, then applies every flag the user set.
func loadConfig(cmd *cobra.Command) (config.File, error) {
	f := config.Default()
	if configPath != "" {
		var err error
		if f, err = config.Load(configPath); err != nil {
			return config.File{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("key") {
		f.Key = writerKey
	}
	if flags.Changed("reader") {
		f.Readers = readerKeys
	}
	if flags.Changed("secret") {
		f.Secret = secret
	}
	if flags.Changed("pin") {
		f.PIN = pinDigits
	}
	if flags.Changed("output") {
		f.Output = outputPath
	}
	if flags.Changed("archive") {
		f.Archive = archiveLoc
	}
	if flags.Changed("crosshair") || flags.Changed("strict-rmt") {
		s := record.Settings{}
		if f.Settings != nil {
			s = *f.Settings
		}
		if flags.Changed("crosshair") {
			s.Crosshair = crosshair
		}
		if flags.Changed("strict-rmt") {
			s.StrictRMT = strictRMT
		}
		f.Settings = &s
	}
	return f, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr())

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	records, err := input.ReadFile(path)
	if err != nil {
		return err
	}
	return encode(f, records, cmd.OutOrStdout(), logger)
}

// encode builds the image in memory, writes it out, then archives it.
// Nothing is written when the records do not fit.
func encode(f config.File, records []record.Record, stdout io.Writer, logger *slog.Logger) error {
	builder, err := f.Builder(logger)
	if err != nil {
		return err
	}

	img := memory.NewImage()
	stats, err := builder.Build(records, img)
	if err != nil {
		return err
	}

	if err := writeImage(f.Output, img, stdout); err != nil {
		return err
	}

	if f.Archive == "" {
		return nil
	}
	return archiveImage(f.Archive, stats, img, logger)
}

func writeImage(path string, img storage.Source, stdout io.Writer) error {
	if path == "" || path == "-" {
		return storage.Copy(stream.New(stdout), img)
	}
	out, err := stream.Create(path)
	if err != nil {
		return err
	}
	if err := storage.Copy(out, img); err != nil {
		out.Abort()
		return err
	}
	return out.Commit()
}

func archiveImage(location string, stats layout.Stats, img storage.Source, logger *slog.Logger) error {
	a, err := openArchive(location)
	if err != nil {
		return err
	}
	defer a.Close()

	info := storage.ImageInfo{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Mode:      stats.Mode.String(),
		Records:   stats.Records,
		Readers:   stats.Readers,
	}
	if err := a.Save(info, img); err != nil {
		return fmt.Errorf("archiving image: %w", err)
	}
	logger.Info("image archived", "id", info.ID)
	return nil
}
