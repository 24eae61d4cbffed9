/*
Package cli provides helpers shared by the datastore command.

Output Formatting:

Table dumps can be written as aligned text, JSON or CSV:

	formatter, err := cli.NewFormatter("json")
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, cli.RecordsTable(values))

Absent values print as "-" in text output, null in JSON and an empty
field in CSV.

Progress Reporting:

The progress reporter satisfies migration.Progress:

	progress := cli.NewProgressReporter(os.Stderr, "Migrating")

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
