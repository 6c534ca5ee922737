package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/storage"
)

// newDoctorCommand creates the doctor command.
func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check lakehouse connectivity and catalog health",
		Long: `Open the engine, attach the lake catalog, and run a probe query.

The command verifies extension loading, catalog attachment, and
round-trips a query through the attached catalog. It attaches
read-only so it can run next to a writing service.`,
		Example: `  # Check the configured lakehouse
  geolake doctor --config geolake.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(storage.WithReadOnly())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			settings := mgr.Settings()
			fmt.Fprintf(out, "Catalog schema: %s\n", settings.CatalogSchema)
			fmt.Fprintf(out, "Storage path:   %s\n", settings.StoragePath)

			if err := mgr.Open(ctx); err != nil {
				return fmt.Errorf("lakehouse unreachable: %w", err)
			}
			defer func() { _ = mgr.Close() }()
			fmt.Fprintln(out, "Engine:         ok (extensions loaded, catalog attached)")

			res, err := mgr.Execute(ctx,
				"SELECT COUNT(*) FROM information_schema.schemata WHERE catalog_name = ?", storage.CatalogName)
			if err != nil {
				return fmt.Errorf("catalog probe failed: %w", err)
			}
			if len(res.Rows) > 0 {
				fmt.Fprintf(out, "Catalog:        ok (%v schemas)\n", res.Rows[0][0])
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
