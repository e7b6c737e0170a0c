// Package ingest turns uploaded or fetched datasets into chartable tables.
//
// Every ingestion runs the same pipeline:
//
//  1. Sniff the format from the file name, falling back to the content
//  2. Parse delimited text (comma or tab), JSON, or an XLSX workbook
//  3. Coerce numeric-looking strings to numbers
//  4. Classify columns as numeric when at least one row holds a number
//  5. Pick the x-axis column
//
// The output is a [Result]: records sharing one ordered key set, the x-axis
// key (absent when it cannot be inferred) and the numeric series keys.
//
// # Delimited text
//
// Lines are split on LF or CRLF, trimmed, and blank lines are dropped wherever
// they appear. The first remaining line is the header. Fields are separated by
// a comma or a tab; quoting is not supported. An empty header cell at position
// i is named col_{i+1}. The x-axis is always the first header column.
//
// # JSON
//
// A top-level array yields one record per element, a single object yields one
// record, and any other value yields an empty result. The first element defines
// the column set; later elements are projected onto it unless
// [SchemaUnion] is requested. The x-axis is the first non-numeric column, or
// the first column when every column is numeric.
//
// # Empty cells
//
// By default an empty cell is Null and does not make a column numeric.
// [EmptyAsZero] restores the older behavior where an empty cell counts as the
// number 0.
package ingest
