package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "leasebook",
	Short: "Recurring rent invoices for landlords",
	Long: `leasebook generates the invoices of recurring rent templates on schedule.

Run "serve" for the API and the sweep loop, "sweep" to process due
templates once, or "migrate" to bring the schema up to date.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
}
