package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/catalog"
	"github.com/EPajares/goat-sub002/internal/storage"
)

// newInfoCommand creates the info command.
func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <layer-id>",
		Short: "Show a layer's table metadata",
		Long: `Display a layer table's row count, columns, and geometry details
(geometry column, type, and extent when present).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(storage.WithReadOnly())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := mgr.Open(ctx); err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			resolver := catalog.NewResolver(mgr, catalog.WithLogger(newLogger()))
			table, err := resolver.TablePath(ctx, args[0])
			if err != nil {
				return err
			}
			info, err := mgr.TableInfo(ctx, table)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Table:    %s\n", info.TableName)
			fmt.Fprintf(out, "Features: %d\n", info.FeatureCount)
			fmt.Fprintln(out, "Columns:")
			for _, col := range info.Columns {
				marker := ""
				if col.Name == info.GeometryColumn {
					marker = "  (geometry)"
				}
				fmt.Fprintf(out, "  %-24s %s%s\n", col.Name, col.Type, marker)
			}
			if info.GeometryType != "" {
				fmt.Fprintf(out, "Geometry type: %s\n", info.GeometryType)
			}
			if info.Extent != nil {
				fmt.Fprintf(out, "Extent: [%g, %g, %g, %g]\n",
					info.Extent.XMin, info.Extent.YMin, info.Extent.XMax, info.Extent.YMax)
			}
			return nil
		},
	}
}
