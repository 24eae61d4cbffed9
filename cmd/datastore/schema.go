package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/datastore/pkg/data"
	"mercator-hq/datastore/pkg/storage"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the declared tables and columns",
	Long: `Create every table and column declared under data.tables in the active
backend. Existing tables and columns are left untouched, so the command
can be run any number of times.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, "schema", func(ctx context.Context, svc *data.Service) error {
			out := cmd.OutOrStdout()

			return svc.Cache().WithManager(func(m *storage.Manager) error {
				schema := m.Schema()
				err := m.ApplySchema(ctx, schema)

				// SchemaError carries physical table names
				failed := make(map[string]bool)
				var schemaErr *storage.SchemaError
				for _, e := range unwrapJoined(err) {
					if errors.As(e, &schemaErr) {
						failed[schemaErr.Table] = true
					}
					fmt.Fprintf(out, "✗ %v\n", e)
				}

				for _, table := range schema.Tables() {
					if failed[m.TableName(table)] {
						continue
					}
					columns := append([]string{storage.TargetColumn}, schema[table]...)
					fmt.Fprintf(out, "✓ %s (%s)\n", m.TableName(table), strings.Join(columns, ", "))
				}
				return err
			})
		})
	},
}

// unwrapJoined returns the errors of an errors.Join result, or err itself.
func unwrapJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
