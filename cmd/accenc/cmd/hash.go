package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jmcleod/accenc/config"
	"github.com/jmcleod/accenc/internal/util"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print the PIN verifier hashes for a device secret and PIN",
	Long: `Computes the id and master hashes stored in the PIN verification block.
The secret and PIN come from --secret and --pin or from the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return printHashes(cmd.OutOrStdout(), f)
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
	hashCmd.Flags().StringVar(&secret, "secret", "", "Device secret (64 hex digits or 24-word mnemonic)")
	hashCmd.Flags().StringVar(&pinDigits, "pin", "", "Device PIN (1 to 8 digits)")
}

func printHashes(w io.Writer, f config.File) error {
	if f.Secret == "" || f.PIN == "" {
		return fmt.Errorf("both a device secret and a PIN are required")
	}
	v, err := f.Verifier()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "id_hash:     %s\n", util.HexEncode(v.ID[:]))
	fmt.Fprintf(w, "master_hash: %s\n", util.HexEncode(v.Master[:]))
	return nil
}
