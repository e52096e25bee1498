// Package cmd implements the rarstream command line.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/javi11/rarstream"
)

var (
	cfg    = viper.New()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "rarstream",
	Short:        "Inspect, test and extract RAR archives",
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		var err error
		if cfg.GetBool("debug") {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("password", "p", "", "password for encrypted archives")
	flags.Bool("debug", false, "log every engine call")
	_ = cfg.BindPFlags(flags)
	cfg.SetEnvPrefix("RARSTREAM")
	cfg.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	var openErr rarstream.OpenError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &openErr):
		return 2
	case errors.Is(err, rarstream.ErrEntryNotFound):
		return 3
	case errors.Is(err, rarstream.CodeMissingPassword), errors.Is(err, rarstream.CodeBadPassword):
		return 4
	}
	return 1
}

func archive(name string) *rarstream.Archive {
	opts := []rarstream.Option{rarstream.WithLogger(logger)}
	if pw := cfg.GetString("password"); pw != "" {
		return rarstream.NewWithPassword(name, []byte(pw), opts...)
	}
	return rarstream.New(name, opts...)
}
