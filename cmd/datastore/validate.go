package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/cli"
	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/migration"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config.yaml and the storage files",
	Long: `Check config.yaml, storage.yml and, when present, storage-new.yml
without connecting to any backend.

An unknown storage method is reported as a warning because the store falls
back to sqlite for it. An unfinished file rotation left behind by an
interrupted migration is reported too; it is completed the next time the
store opens.

Examples:
  datastore validate
  datastore validate --config /etc/datastore/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", cfgFile, err)
		return cli.NewConfigError(cfgFile, "configuration is invalid")
	}
	fmt.Fprintf(out, "✓ %s\n", cfgFile)

	files := migration.FilesFor(cfg.StoragePath(cfgFile))
	valid := true

	if _, err := os.Stat(files.Current); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "- %s does not exist, a default file is written on first start\n", files.Current)
	} else if !validateStorageFile(out, files.Current, cfg.PluginName, config.LoadStorageConfig) {
		valid = false
	}

	if _, err := os.Stat(files.New); err == nil {
		if !validateStorageFile(out, files.New, cfg.PluginName, config.LoadStorageConfigWithoutEnv) {
			valid = false
		} else {
			fmt.Fprintln(out, "  a migration to this backend runs on the next start")
		}
	}

	if _, err := os.Stat(files.Journal); err == nil {
		fmt.Fprintf(out, "! %s exists: a storage file rotation was interrupted and is completed on the next start\n", files.Journal)
	}

	if !valid {
		return cli.NewConfigError(files.Dir, "storage configuration is invalid")
	}
	return nil
}

type storageLoader func(path, pluginName string) (*config.StorageConfig, error)

func validateStorageFile(out io.Writer, path, pluginName string, load storageLoader) bool {
	cfg, err := load(path, pluginName)
	if err != nil {
		fmt.Fprintf(out, "✗ %s: %v\n", path, err)
		return false
	}

	if _, ok := storage.ParseMethod(cfg.Method); !ok {
		fmt.Fprintf(out, "! %s: unknown method %q, %s is used instead\n", path, cfg.Method, storage.DefaultMethod)
	}

	method := storage.ResolveMethod(cfg, discardLogger())
	if method.IsRemote() {
		port := cfg.RemoteConnection.Port
		if port == 0 {
			port = method.DefaultPort()
		}
		fmt.Fprintf(out, "✓ %s (%s at %s:%d/%s, prefix %q)\n", path, method,
			cfg.RemoteConnection.Host, port, cfg.RemoteConnection.Database, cfg.RemoteConnection.TablePrefix)
		return true
	}
	fmt.Fprintf(out, "✓ %s (%s in %s)\n", path, method, cfg.DataDir)
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
