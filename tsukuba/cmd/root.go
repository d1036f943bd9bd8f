// Package cmd provides the command-line interface for Tsukuba.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "tsukuba",
	Short: "Tsukuba CLI tool can run kernel simulations and inspect the " +
		"traces they record.",
	Long: `Tsukuba CLI tool can run kernel simulations and inspect the ` +
		`traces they record. Currently, it supports running a comparator ` +
		`contention scenario, summarizing trace databases, and creating ` +
		`driver packages.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// A .env file can carry the MySQL and ClickHouse credentials.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
