package main

import (
	"os"

	"github.com/qbcopy-dev/qbcopy/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
