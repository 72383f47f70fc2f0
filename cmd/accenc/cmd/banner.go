package cmd

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

func printBanner(w io.Writer) {
	fmt.Fprint(w, color.BlueString("%s", figure.NewFigure("accenc", "", true).String()))
	fmt.Fprintln(w, color.GreenString("  Account Image Encoder - Version %s", Version))
	fmt.Fprintln(w)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printBanner(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
