package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/cli"
	"mercator-hq/datastore/pkg/data"
)

// One-shot commands bypass the write-back cache so that every write
// reaches the backend before the process exits.

var getCmd = &cobra.Command{
	Use:   "get <table> <target> <column>",
	Short: "Print one value",
	Long: `Print the value stored for a column of a target.

The command exits with an error when the value is absent. An empty string
is a present value and prints an empty line.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "get", func(ctx context.Context, svc *data.Service) error {
			v, ok, err := svc.StringData(args[0], args[1]).WithCache(false).Get(ctx, args[2])
			if err != nil {
				return err
			}
			if !ok {
				return &cli.NotFoundError{Table: args[0], Target: args[1], Column: args[2]}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <table> <target> <column> <value>",
	Short: "Store one value",
	Long: `Store a value for a column of a target. Other columns of the row are
left unchanged.

The column must be declared under data.tables in the configuration. SQL
backends reject columns that do not exist yet; run "datastore schema"
after declaring a new one.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "set", func(ctx context.Context, svc *data.Service) error {
			return svc.StringData(args[0], args[1]).WithCache(false).Set(ctx, args[2], args[3])
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <table> <target> <column>",
	Aliases: []string{"rm"},
	Short:   "Remove one value",
	Long:    `Make a column of a target absent. The row itself is kept.`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "remove", func(ctx context.Context, svc *data.Service) error {
			return svc.StringData(args[0], args[1]).WithCache(false).Remove(ctx, args[2])
		})
	},
}

var dumpFlags struct {
	format string
}

var dumpCmd = &cobra.Command{
	Use:   "dump <table>",
	Short: "Print every record of a table",
	Long: `Print every record of a table, one row per target.

Examples:
  datastore dump players
  datastore dump players --format csv > players.csv
  datastore dump entities --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := cli.NewFormatter(dumpFlags.format)
		if err != nil {
			return err
		}
		return withService(cmd, "dump", func(ctx context.Context, svc *data.Service) error {
			values, err := svc.Dump(ctx, args[0])
			if err != nil {
				return err
			}
			return formatter.FormatTo(cmd.OutOrStdout(), cli.RecordsTable(values))
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the active backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "tables", func(ctx context.Context, svc *data.Service) error {
			tables, err := svc.Tables(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd, removeCmd, dumpCmd, tablesCmd)

	dumpCmd.Flags().StringVarP(&dumpFlags.format, "format", "f", "text", "output format: text, json, csv")
}
