package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javi11/rarstream"
)

func init() {
	partsCmd := &cobra.Command{
		Use:   "parts <archive>",
		Short: "Show the volumes of a multipart archive",
		Args:  cobra.ExactArgs(1),
		RunE:  runParts,
	}
	partsCmd.Flags().Bool("files", false, "also list the fragments stored in each volume")

	rootCmd.AddCommand(partsCmd)
}

func runParts(cmd *cobra.Command, args []string) error {
	a := archive(args[0])
	out := cmd.OutOrStdout()
	if glob, ok := a.AllPartsOption(); ok {
		fmt.Fprintf(out, "pattern: %s\n", glob)
	}
	first := a.FirstPart()
	vols, err := rarstream.DiscoverVolumes(first)
	if err != nil {
		return err
	}

	withFiles, _ := cmd.Flags().GetBool("files")
	if !withFiles {
		for _, v := range vols {
			fmt.Fprintln(out, v)
		}
		return nil
	}

	arc, err := archive(first).OpenForListingSplit()
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()
	var headers []rarstream.FileHeader
	for h, err := range arc.All() {
		if err != nil {
			return err
		}
		headers = append(headers, h)
	}
	for _, v := range rarstream.ByVolume(headers) {
		fmt.Fprintln(out, v.Path)
		for _, h := range v.Files {
			fmt.Fprintf(out, "  %10d  %s\n", h.PackedSize, h)
		}
	}
	return nil
}
