package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/accenc/block"
	"github.com/jmcleod/accenc/layout"
	"github.com/jmcleod/accenc/pin"
)

// ---------------------------------------------------------------------------
// Check result types
// ---------------------------------------------------------------------------

type checkReport struct {
	File    string        `json:"file"`
	Mode    string        `json:"mode"`
	Blocks  int           `json:"blocks"`
	Records int           `json:"records"`
	Valid   bool          `json:"valid"`
	Checks  []checkResult `json:"checks"`
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "pass", "fail", "warn"
	Detail string `json:"detail,omitempty"`
}

func (r *checkReport) pass(name, detail string) {
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "pass", Detail: detail})
}

func (r *checkReport) warn(name, detail string) {
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "warn", Detail: detail})
}

func (r *checkReport) fail(name, detail string) {
	r.Valid = false
	r.Checks = append(r.Checks, checkResult{Name: name, Status: "fail", Detail: detail})
}

// ---------------------------------------------------------------------------
// Core check logic
// ---------------------------------------------------------------------------

// checkImage inspects the layout of an image without opening any block.
// When want is non-nil the verifier hashes are compared against it.
func checkImage(data []byte, cfg layout.Config, mode layout.Mode, want *pin.Verifier) checkReport {
	report := checkReport{Mode: mode.String(), Valid: true}

	// 1. Size.
	if len(data)%block.Size != 0 {
		report.fail("image_size", fmt.Sprintf("%d bytes is not a whole number of %d-byte blocks", len(data), block.Size))
		return report
	}
	report.Blocks = len(data) / block.Size
	if report.Blocks == cfg.StorageBlocks {
		report.pass("image_size", fmt.Sprintf("%d blocks", report.Blocks))
	} else {
		report.fail("image_size", fmt.Sprintf("%d blocks, expected %d", report.Blocks, cfg.StorageBlocks))
	}
	blk := func(n int) []byte {
		return data[n*block.Size : (n+1)*block.Size]
	}

	first := 0
	if mode == layout.ModeEnveloped {
		first = cfg.ReservedBlocks + 1
		if report.Blocks < first {
			report.fail("reserved_region", fmt.Sprintf("image ends inside the %d reserved blocks", first))
			return report
		}
		checkReserved(&report, cfg, blk, want)
	}

	// 2. Records are contiguous and followed only by filler.
	end := first
	for end < report.Blocks && !block.IsFiller(blk(end)) {
		end++
	}
	report.Records = end - first
	stray := -1
	for n := end; n < report.Blocks; n++ {
		if !block.IsFiller(blk(n)) {
			stray = n
			break
		}
	}
	if stray < 0 {
		report.pass("contiguous_records", fmt.Sprintf("%d records, %d filler blocks", report.Records, report.Blocks-end))
	} else {
		report.fail("contiguous_records", fmt.Sprintf("block %d follows filler", stray))
	}

	// 3. Legacy framing.
	if mode == layout.ModeLegacy {
		bad := -1
		for n := first; n < end; n++ {
			if !block.IsFramed(blk(n)) {
				bad = n
				break
			}
		}
		if bad < 0 {
			report.pass("legacy_framing", "")
		} else {
			report.fail("legacy_framing", fmt.Sprintf("block %d lacks the legacy pad or placeholder hash", bad))
		}
	}
	return report
}

func checkReserved(report *checkReport, cfg layout.Config, blk func(int) []byte, want *pin.Verifier) {
	// PIN verification block.
	switch got, ok := layout.ParseVerificationBlock(cfg, blk(0)); {
	case block.IsFiller(blk(0)):
		report.warn("pin_verifier", "no PIN verification block")
	case !ok:
		report.fail("pin_verifier", "block 0 is not a PIN verification block")
	case want == nil:
		report.pass("pin_verifier", "present; hashes not checked")
	case got != *want:
		report.fail("pin_verifier", "hashes do not match the given device secret and PIN")
	default:
		report.pass("pin_verifier", "hashes match")
	}

	// Pad blocks.
	padOK := true
	for n := 1; n < cfg.ReservedBlocks; n++ {
		if !block.IsFiller(blk(n)) {
			padOK = false
			report.fail("pad_blocks", fmt.Sprintf("reserved block %d is not filler", n))
			break
		}
	}
	if padOK {
		report.pass("pad_blocks", "")
	}

	// Settings block.
	if block.IsFiller(blk(cfg.ReservedBlocks)) {
		report.fail("settings_block", fmt.Sprintf("block %d is filler", cfg.ReservedBlocks))
	} else {
		report.pass("settings_block", "")
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func printHumanReport(w io.Writer, report checkReport) {
	fmt.Fprintf(w, "Image check: %s\n", report.File)
	fmt.Fprintf(w, "Mode:    %s\n", report.Mode)
	fmt.Fprintf(w, "Blocks:  %d\n", report.Blocks)
	fmt.Fprintf(w, "Records: %d\n\n", report.Records)

	failures, warnings := 0, 0
	for _, c := range report.Checks {
		tag := color.GreenString("[PASS]")
		switch c.Status {
		case "fail":
			tag = color.RedString("[FAIL]")
			failures++
		case "warn":
			tag = color.YellowString("[WARN]")
			warnings++
		}
		if c.Detail != "" {
			fmt.Fprintf(w, "%s %s: %s\n", tag, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "%s %s\n", tag, c.Name)
		}
	}

	fmt.Fprintln(w)
	if report.Valid {
		fmt.Fprintln(w, "Result: VALID")
	} else {
		fmt.Fprintf(w, "Result: INVALID (%d error(s), %d warning(s))\n", failures, warnings)
	}
}

// ---------------------------------------------------------------------------
// Cobra command
// ---------------------------------------------------------------------------

var errImageInvalid = errors.New("image check failed")

var (
	checkJSONOutput bool
	checkLegacy     bool
)

var checkCmd = &cobra.Command{
	Use:   "check [image]",
	Short: "Check the block layout of a generated image",
	Long: `Reads an image and checks its size, reserved region and record/filler layout.
No block is decrypted. With --secret and --pin (or the config file) the PIN
verifier hashes are compared as well. Exits 1 when the image is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSONOutput, "json", false, "Output results as JSON")
	checkCmd.Flags().BoolVar(&checkLegacy, "legacy", false, "The image is in the legacy unencrypted format")
	checkCmd.Flags().StringVar(&secret, "secret", "", "Device secret (64 hex digits or 24-word mnemonic)")
	checkCmd.Flags().StringVar(&pinDigits, "pin", "", "Device PIN (1 to 8 digits)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	f, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := f.Layout.Validate(); err != nil {
		return err
	}

	var want *pin.Verifier
	if f.Secret != "" && f.PIN != "" {
		v, err := f.Verifier()
		if err != nil {
			return err
		}
		want = &v
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	mode := layout.ModeEnveloped
	if checkLegacy {
		mode = layout.ModeLegacy
	}
	report := checkImage(data, f.Layout, mode, want)
	report.File = args[0]

	if checkJSONOutput {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else {
		printHumanReport(cmd.OutOrStdout(), report)
	}

	if !report.Valid {
		return errImageInvalid
	}
	return nil
}
