package ingest

import (
	"fmt"
	"strings"
)

// Format identifies the parser that produced a Result.
type Format string

const (
	FormatDelimited   Format = "csv"
	FormatJSON        Format = "json"
	FormatSpreadsheet Format = "xlsx"
	FormatProxy       Format = "proxy"
)

// SchemaMode controls how JSON records with differing keys are reconciled.
type SchemaMode int

const (
	// SchemaFirstRecord uses the first record's keys as the column set.
	// Later records are projected onto it; keys they add are dropped and
	// reported in Result.Warnings.
	SchemaFirstRecord SchemaMode = iota
	// SchemaUnion appends keys first seen in later records.
	SchemaUnion
)

func (m SchemaMode) String() string {
	if m == SchemaUnion {
		return "union"
	}
	return "first"
}

// ParseSchemaMode parses "first" or "union".
func ParseSchemaMode(s string) (SchemaMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return SchemaFirstRecord, nil
	case "union":
		return SchemaUnion, nil
	default:
		return SchemaFirstRecord, fmt.Errorf("unknown schema mode %q", s)
	}
}

// Options tune normalization.
type Options struct {
	EmptyCells EmptyCellMode
	Schema     SchemaMode
	// MaxRows truncates the result; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{EmptyCells: EmptyAsNull, Schema: SchemaFirstRecord}
}

// Result is the uniform tabular shape handed to the rendering layer.
type Result struct {
	Rows        []Record `json:"rows"`
	XKey        *string  `json:"xKey"`
	NumericKeys []string `json:"numericKeys"`
	Columns     []string `json:"columns"`
	Format      Format   `json:"format"`
	Warnings    []string `json:"warnings,omitempty"`
}

func emptyResult(format Format) *Result {
	return &Result{
		Rows:        []Record{},
		NumericKeys: []string{},
		Columns:     []string{},
		Format:      format,
	}
}

// XAxis returns the x-axis key and whether one was inferred.
func (r *Result) XAxis() (string, bool) {
	if r.XKey == nil {
		return "", false
	}
	return *r.XKey, true
}

// Series returns the numeric keys that are plotted, i.e. without the x-axis.
func (r *Result) Series() []string {
	x, hasX := r.XAxis()
	out := make([]string, 0, len(r.NumericKeys))
	for _, k := range r.NumericKeys {
		if hasX && k == x {
			continue
		}
		out = append(out, k)
	}
	return out
}

// State is the renderability of a Result.
type State string

const (
	StateReady            State = "ready"
	StateEmptyDataset     State = "empty_dataset"
	StateNoNumericColumns State = "no_numeric_columns"
	StateNoAxis           State = "no_axis"
)

// Message returns the explanation shown when a chart cannot be drawn.
func (s State) Message() string {
	switch s {
	case StateEmptyDataset:
		return "No rows detected. Please check your file."
	case StateNoNumericColumns:
		return "No numeric columns detected. Add numeric values to render charts."
	case StateNoAxis:
		return "Unable to infer an x-axis column. Include an index or timestamp column."
	default:
		return ""
	}
}

// State reports whether r can be charted and, if not, why.
func (r *Result) State() State {
	switch {
	case len(r.Rows) == 0:
		return StateEmptyDataset
	case len(r.NumericKeys) == 0:
		return StateNoNumericColumns
	case r.XKey == nil:
		return StateNoAxis
	case len(r.Series()) == 0:
		return StateNoNumericColumns
	default:
		return StateReady
	}
}
