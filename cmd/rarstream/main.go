package main

import (
	"os"

	"github.com/javi11/rarstream/cmd/rarstream/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
