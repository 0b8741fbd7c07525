package main

import (
	"os"

	"github.com/sflowg/randomnode/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
