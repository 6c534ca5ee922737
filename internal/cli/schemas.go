package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/storage"
)

// newSchemasCommand creates the schemas command.
func newSchemasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List user schemas and their layer tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(storage.WithReadOnly())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := mgr.Open(ctx); err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			res, err := mgr.Execute(ctx,
				`SELECT table_schema, COUNT(*) FROM information_schema.tables
				 WHERE table_catalog = ? AND table_schema LIKE 'user_%'
				 GROUP BY table_schema ORDER BY table_schema`, storage.CatalogName)
			if err != nil {
				return fmt.Errorf("list user schemas: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(res.Rows) == 0 {
				fmt.Fprintln(out, "No user schemas found")
				return nil
			}
			for _, row := range res.Rows {
				fmt.Fprintf(out, "%s  (%v layers)\n", row[0], row[1])
			}
			return nil
		},
	}
}
