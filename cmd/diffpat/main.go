package main

import (
	"os"

	"github.com/diffkemp/diffpat/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
