package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/catalog"
	"github.com/EPajares/goat-sub002/internal/feature"
	"github.com/EPajares/goat-sub002/internal/storage"
	"github.com/EPajares/goat-sub002/pkg/cql"
)

// queryOptions holds flags for the query command.
type queryOptions struct {
	ids        []string
	filter     string
	filterLang string
	strict     bool
	bbox       []float64
	properties []string
	sortBy     string
	limit      int
	offset     int
}

// newQueryCommand creates the query command.
func newQueryCommand() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <layer-id>",
		Short: "Query features from a layer",
		Long: `Run a filtered feature query against a layer table and print the
result as GeoJSON features, one per line.

Filters use CQL2 in JSON or text encoding. Field names are validated
against the layer's columns.`,
		Example: `  # All features in a bounding box
  geolake query 123e4567-e89b-12d3-a456-426614174000 --bbox 11,48,12,49

  # CQL2 text filter, newest first
  geolake query 123e4567-e89b-12d3-a456-426614174000 \
    --filter "category = 'school' AND capacity > 100" \
    --filter-lang cql2-text --sortby -created_at`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "Restrict to these feature ids")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "CQL2 filter expression")
	cmd.Flags().StringVar(&opts.filterLang, "filter-lang", cql.LangJSON, "Filter encoding: cql2-json or cql2-text")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on unknown filter fields instead of ignoring the filter")
	cmd.Flags().Float64SliceVar(&opts.bbox, "bbox", nil, "Bounding box: minx,miny,maxx,maxy")
	cmd.Flags().StringSliceVar(&opts.properties, "properties", nil, "Attribute columns to return (default all)")
	cmd.Flags().StringVar(&opts.sortBy, "sortby", "", "Sort column, prefix with - for descending")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Page offset")

	return cmd
}

func runQuery(cmd *cobra.Command, layerID string, opts *queryOptions) error {
	if len(opts.bbox) != 0 && len(opts.bbox) != 4 {
		return fmt.Errorf("bbox needs exactly 4 values, got %d", len(opts.bbox))
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
	exec := feature.NewExecutor(mgr, resolver, feature.WithLogger(newLogger()))

	ids := make([]any, len(opts.ids))
	for i, id := range opts.ids {
		ids[i] = id
	}

	res, err := exec.Query(ctx, layerID, feature.Options{
		IDs:        ids,
		Filter:     opts.filter,
		FilterLang: opts.filterLang,
		Strict:     opts.strict,
		BBox:       opts.bbox,
		Properties: opts.properties,
		SortBy:     opts.sortBy,
		Limit:      opts.limit,
		Offset:     opts.offset,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, f := range res.Features {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Returned %d of %d matched features\n",
		res.NumberReturned, res.NumberMatched)
	return nil
}
