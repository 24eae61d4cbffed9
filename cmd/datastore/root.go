package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "datastore",
	Short: "Datastore - pluggable key/value storage with live backend migration",
	Long: `Datastore keeps string values addressed by table, target and column in
one of several interchangeable backends:

  - Embedded SQLite (pure Go or cgo driver)
  - MySQL, MariaDB and PostgreSQL servers
  - JSON and YAML files

Writes go through a write-back cache. Dropping a storage-new.yml next to
storage.yml moves every record to the new backend and rotates the files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}
