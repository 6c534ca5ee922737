// Package cli provides the command-line interface for the geolake storage
// core.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/EPajares/goat-sub002/internal/config"
	"github.com/EPajares/goat-sub002/internal/storage"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geolake",
		Short: "geolake - multi-tenant geospatial lakehouse storage core",
		Long: `geolake manages user layer tables in a DuckLake lakehouse: a DuckDB
engine attached to a Postgres-backed catalog with Parquet bulk storage.

Configuration is read from a YAML file and GEOLAKE_* environment
variables (environment wins). The catalog DSN and storage path are
required.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Geospatial lakehouse storage built with Go and DuckDB
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newDoctorCommand())
	rootCmd.AddCommand(newSchemasCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newQueryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger builds the CLI logger: info to stderr, debug with --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newManager loads settings and creates an unopened storage manager.
func newManager(opts ...storage.Option) (*storage.Manager, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	opts = append([]storage.Option{storage.WithLogger(newLogger())}, opts...)
	return storage.New(*settings, opts...), nil
}
