package cmd

import (
	"github.com/spf13/cobra"
)

func init() {
	catCmd := &cobra.Command{
		Use:   "cat <archive> <entry>",
		Short: "Write one entry to standard output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := archive(args[0]).ReadBytes(args[1])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	rootCmd.AddCommand(catCmd)
}
