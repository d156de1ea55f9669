// Command valuation is the command-line calculator.
package main

import (
	"fmt"
	"os"

	"github.com/JohanRGustafsson/valuation-model/internal/config"
	"github.com/JohanRGustafsson/valuation-model/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// .env must be applied before flags read their environment defaults.
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "valuation: %v\n", err)
		os.Exit(1)
	}
	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
