package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/ingest"
)

var (
	parseMaxSize int64
	parseName    string
)

var parseCmd = &cobra.Command{
	Use:   "parse <file|->",
	Short: "Normalize a local dataset and print the result",
	Long: `Reads a CSV, JSON or XLSX file and prints the normalized rows, the
inferred x-axis, the numeric columns and per-series statistics as JSON.
Use - to read from stdin together with --name to pick the parser.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Int64Var(&parseMaxSize, "max-size", 20<<20, "largest accepted input in bytes")
	parseCmd.Flags().StringVar(&parseName, "name", "", "file name used for format detection when reading stdin")
}

// parseOutput is the JSON document printed by parse.
type parseOutput struct {
	*ingest.Result
	State   ingest.State           `json:"state"`
	Message string                 `json:"message,omitempty"`
	Summary []ingest.SeriesSummary `json:"summary"`
}

func runParse(cmd *cobra.Command, args []string) error {
	opts, err := ingestOptions()
	if err != nil {
		return err
	}

	name := args[0]
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
		name = parseName
	} else {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	data, err := ingest.ReadLimited(r, parseMaxSize)
	if err != nil {
		return userError(err)
	}
	res, err := ingest.Normalize(name, data, opts)
	if err != nil {
		return userError(err)
	}

	state := res.State()
	out := parseOutput{
		Result:  res,
		State:   state,
		Message: state.Message(),
		Summary: ingest.Summarize(res),
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if state == ingest.StateEmptyDataset {
		return userError(core.ErrEmptyDataset)
	}
	return nil
}

// userError turns err into the message shown in the web UI. Errors with no
// specific message keep their own text.
func userError(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	return errors.New(core.FormatUserError(err))
}
