package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	extractCmd := &cobra.Command{
		Use:   "extract <archive> [destination]",
		Short: "Extract every entry of an archive",
		Long:  `Extract every entry below destination (default: the current directory). Any volume of a multipart archive may be given; extraction starts at the first one.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runExtract,
	}

	rootCmd.AddCommand(extractCmd)
}

func runExtract(_ *cobra.Command, args []string) error {
	dest := "."
	if len(args) > 1 {
		dest = args[1]
	}
	a := archive(args[0])
	if a.IsMultipart() {
		a = a.AsFirstPart()
	}
	logger.Info("extracting", zap.String("archive", a.Filename()), zap.String("destination", dest))
	return a.ExtractAll(dest)
}
