// Command coordinator is the entry point for the zkstage proof-generation
// coordinator: run, submit, and status subcommands built by internal/cli.
package main

import (
	"fmt"
	"os"

	"github.com/zkstage/coordinator/internal/cli"
)

// Build-time version injection via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
