package main

import (
	"os"

	"github.com/aretw0/arbor"

	// Registers the builtin routine library for both realms.
	_ "github.com/aretw0/arbor/internal/cli"
)

func main() {
	// When re-executed as a subprocess frame, Main runs the registered
	// routine and this process must exit without touching the CLI.
	if handled, err := arbor.Main(); handled {
		if err != nil {
			os.Exit(1)
		}
		return
	}

	Execute()
}
