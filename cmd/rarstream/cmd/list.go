package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"

	"github.com/javi11/rarstream"
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries of an archive",
		Long:  `List one line per file. With --split every volume fragment of a split file is listed.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}
	listCmd.Flags().Bool("split", false, "list every volume fragment")
	listCmd.Flags().Bool("json", false, "print files with their fragments as JSON")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a := archive(args[0])
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		files, err := a.ListFiles()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(files)
	}

	if split, _ := cmd.Flags().GetBool("split"); split {
		arc, err := a.OpenForListingSplit()
		if err != nil {
			return err
		}
		defer func() { _ = arc.Close() }()
		return printHeaders(out, arc.All())
	}
	arc, err := a.OpenForListing()
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()
	return printHeaders(out, arc.All())
}

func printHeaders(w io.Writer, headers iter.Seq2[rarstream.FileHeader, error]) error {
	for h, err := range headers {
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%12d  %s  %s\n", h.UnpackedSize, h.ModTime().Format("2006-01-02 15:04"), h)
	}
	return nil
}
