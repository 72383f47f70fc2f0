package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/accenc/config"
	"github.com/jmcleod/accenc/internal/uuid"
	"github.com/jmcleod/accenc/storage"
	boltarchive "github.com/jmcleod/accenc/storage/bbolt"
	"github.com/jmcleod/accenc/storage/memory"
	"github.com/jmcleod/accenc/storage/postgres"
)

var (
	archiveJSONOutput bool
	exportPath        string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List and export archived images",
	Long: `Images built with --archive are kept in a BBolt file or a PostgreSQL
database under a random id. These commands read them back.`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived images, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := archiveFromFlags()
		if err != nil {
			return err
		}
		defer a.Close()
		infos, err := a.List()
		if err != nil {
			return err
		}
		if archiveJSONOutput {
			return printJSON(cmd.OutOrStdout(), infos)
		}
		return printImageTable(cmd.OutOrStdout(), infos)
	},
}

var archiveExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write an archived image to stdout or --output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !uuid.Valid(args[0]) {
			return fmt.Errorf("%q is not an image id", args[0])
		}
		a, err := archiveFromFlags()
		if err != nil {
			return err
		}
		defer a.Close()
		return exportImage(a, args[0], exportPath, cmd.OutOrStdout())
	},
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an archived image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := archiveFromFlags()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Delete(args[0]); err != nil {
			return err
		}
		newLogger(cmd.ErrOrStderr()).Info("image deleted", "id", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveExportCmd, archiveDeleteCmd)

	archiveCmd.PersistentFlags().StringVar(&archiveLoc, "archive", "", "BBolt file or postgres:// database holding the images")
	archiveListCmd.Flags().BoolVar(&archiveJSONOutput, "json", false, "Output the list as JSON")
	archiveExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Write the image to this file instead of stdout")
}

// archiveFromFlags opens --archive, falling back to the config file.
func archiveFromFlags() (storage.Archive, error) {
	location := archiveLoc
	if location == "" && configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		location = f.Archive
	}
	if location == "" {
		return nil, errors.New("no archive given; use --archive or set archive in the config file")
	}
	return openArchive(location)
}

// openArchive opens a PostgreSQL archive for postgres:// DSNs and a BBolt
// file for anything else.
func openArchive(location string) (storage.Archive, error) {
	if postgres.IsDSN(location) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.OpenArchive(ctx, location)
	}
	return boltarchive.OpenArchive(location, &bbolt.Options{Timeout: time.Second})
}

// exportImage stages the image in memory so a missing or truncated image
// never reaches the output.
func exportImage(a storage.Archive, id, path string, stdout io.Writer) error {
	img := memory.NewImage()
	if err := a.Export(id, img); err != nil {
		return err
	}
	return writeImage(path, img, stdout)
}

func printImageTable(w io.Writer, infos []storage.ImageInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODE\tRECORDS\tREADERS\tBLOCKS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			info.ID, info.CreatedAt.Format(time.RFC3339), info.Mode, info.Records, info.Readers, info.Blocks)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
