// Command chartctl runs the dataset normalizer from the command line.
//
// Usage:
//
//	chartctl parse intake.csv
//	chartctl parse --empty-cells zero - < export.json
//	chartctl fetch https://example.com/steps.json --api http://localhost:8000
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/JonMunkholm/graphupload/internal/logging"
)

var (
	logLevel   string
	emptyCells string
	schemaMode string
	maxRows    int
)

var rootCmd = &cobra.Command{
	Use:           "chartctl",
	Short:         "Normalize CSV, JSON and XLSX datasets for charting",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout carries JSON output, so logs go to stderr.
		slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, "text"))
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&emptyCells, "empty-cells", "null", "how empty cells are coerced: null or zero")
	flags.StringVar(&schemaMode, "schema", "first", "JSON key reconciliation: first or union")
	flags.IntVar(&maxRows, "max-rows", 0, "truncate to this many rows (0 = unlimited)")

	rootCmd.AddCommand(parseCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ingestOptions builds normalizer options from the persistent flags.
func ingestOptions() (ingest.Options, error) {
	empty, err := ingest.ParseEmptyCellMode(emptyCells)
	if err != nil {
		return ingest.Options{}, err
	}
	schema, err := ingest.ParseSchemaMode(schemaMode)
	if err != nil {
		return ingest.Options{}, err
	}
	if maxRows < 0 {
		return ingest.Options{}, fmt.Errorf("--max-rows must be >= 0, got %d", maxRows)
	}
	return ingest.Options{EmptyCells: empty, Schema: schema, MaxRows: maxRows}, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
