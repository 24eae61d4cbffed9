package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/cli"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/migration"
)

var migrateFlags struct {
	quiet bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move all data to the backend described by storage-new.yml",
	Long: `Copy every record from the active backend to the backend described by
storage-new.yml, then rotate the files:

  storage.yml     -> storage-old.yml
  storage-new.yml -> storage.yml

A record that cannot be written is reported and does not stop the
migration. If the new backend cannot be reached nothing is changed.

Examples:
  # Stage a move to MySQL and run it
  cp storage-mysql.yml storage-new.yml
  datastore migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVarP(&migrateFlags.quiet, "quiet", "q", false, "do not show a progress bar")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	files := migration.FilesFor(env.cfg.StoragePath(cfgFile))
	if _, err := os.Stat(files.New); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "Nothing to migrate: %s does not exist\n", files.New)
		return nil
	}

	var progress migration.Progress
	if !migrateFlags.quiet {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "Migrating")
	}

	ctx := cmd.Context()
	svc, err := env.open(ctx, progress)
	if err != nil {
		return cli.NewCommandError("migrate", err)
	}
	defer svc.Close(ctx)

	res, migrateErr := svc.OpenMigration()
	if res != nil {
		printMigrationResult(out, res)
	}

	var cutover *storage.CutoverError
	switch {
	case errors.As(migrateErr, &cutover):
		fmt.Fprintf(out, "\nData was copied but the storage files could not be rotated (step %s).\n", cutover.Step)
		fmt.Fprintln(out, "Finish the rotation by hand:")
		for _, step := range cutover.Instructions {
			fmt.Fprintf(out, "  - %s\n", step)
		}
		return cli.NewCommandError("migrate", migrateErr)
	case migrateErr != nil:
		return cli.NewCommandError("migrate", migrateErr)
	}

	fmt.Fprintf(out, "✓ Now using %s (%s)\n", svc.Manager().Method(), files.Current)
	if res != nil && res.Failed > 0 {
		return cli.NewCommandError("migrate", fmt.Errorf("%d records could not be migrated", res.Failed))
	}
	return nil
}

func printMigrationResult(w io.Writer, res *migration.Result) {
	fmt.Fprintf(w, "Migration %s\n", res.ID)
	fmt.Fprintf(w, "  From:     %s\n", res.From)
	fmt.Fprintf(w, "  To:       %s\n", orUnknown(string(res.To)))
	fmt.Fprintf(w, "  Tables:   %d\n", len(res.Tables))
	fmt.Fprintf(w, "  Migrated: %d\n", res.Migrated)
	fmt.Fprintf(w, "  Failed:   %d\n", res.Failed)
	fmt.Fprintf(w, "  Duration: %s\n", res.Duration.Round(time.Millisecond))

	for _, table := range res.Skipped {
		fmt.Fprintf(w, "  ! skipped table %s\n", table)
	}
	for _, err := range res.RecordErrors {
		var recErr *storage.RecordError
		if errors.As(err, &recErr) {
			fmt.Fprintf(w, "  ✗ %s/%s %v: %v\n", recErr.Table, recErr.Target, recErr.Values, recErr.Cause)
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
