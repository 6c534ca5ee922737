package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/catalog"
	"github.com/EPajares/goat-sub002/internal/storage"
	"github.com/EPajares/goat-sub002/pkg/layer"
)

// newResolveCommand creates the resolve command.
func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <layer-id>",
		Short: "Resolve a layer ID to its schema and table path",
		Long: `Normalize a layer ID and locate the owning user schema in the lake
catalog. Accepts both hyphenated UUIDs and bare 32-char hex.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := layer.Normalize(args[0])
			if err != nil {
				return err
			}

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
			schema, err := resolver.SchemaForLayer(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Layer ID: %s\n", id)
			fmt.Fprintf(out, "Schema:   %s\n", schema)
			fmt.Fprintf(out, "Table:    %s.%s.%s\n", storage.CatalogName, schema, layer.TableName(id))
			return nil
		},
	}
}
