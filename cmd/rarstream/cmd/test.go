package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	testCmd := &cobra.Command{
		Use:   "test <archive>",
		Short: "Decompress every entry and verify its checksum",
		Args:  cobra.ExactArgs(1),
		RunE:  runTest,
	}

	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	a := archive(args[0])
	if a.IsMultipart() {
		a = a.AsFirstPart()
	}
	arc, err := a.OpenForProcessing()
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()

	out := cmd.OutOrStdout()
	for {
		p, err := arc.TryNext()
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		h := p.Header()
		if h.IsSplitBefore() || h.IsDirectory() {
			if err := p.Skip(); err != nil {
				return err
			}
			continue
		}
		if err := p.Test(); err != nil {
			fmt.Fprintf(out, "FAIL  %s: %v\n", h.Filename, err)
			return err
		}
		fmt.Fprintf(out, "OK    %s\n", h.Filename)
	}
}
