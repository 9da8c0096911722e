package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "memtrace",
	Short: "memtrace simulates cache hierarchies over recorded memory-access streams.",
	Long: `memtrace drives the memory-access tracing core outside an emulator. ` +
		`It replays a recorded access stream through the configured cache ` +
		`hierarchy (or logs every in-region access when no cache is ` +
		`configured) and reports per-level statistics.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// Optional .env file supplies defaults for the MEMTRACE_* settings.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
