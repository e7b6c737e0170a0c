package ingest

import "fmt"

// NumericKeys returns, in key order, every key for which at least one row
// holds a number.
func NumericKeys(rows []Record, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, row := range rows {
			if v, ok := row.Get(k); ok && v.IsNumber() {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// firstNonNumeric returns the first key not in numeric, falling back to the
// first key. It returns nil when keys is empty.
func firstNonNumeric(keys, numeric []string) *string {
	if len(keys) == 0 {
		return nil
	}
	isNumeric := make(map[string]bool, len(numeric))
	for _, k := range numeric {
		isNumeric[k] = true
	}
	for _, k := range keys {
		if !isNumeric[k] {
			k := k
			return &k
		}
	}
	k := keys[0]
	return &k
}

// FromRecords normalizes records that were already parsed into key/value form:
// text values are coerced, the column set is fixed per opts.Schema and every
// record is projected onto it. The x-axis is inferred the JSON way.
func FromRecords(records []Record, format Format, opts Options) *Result {
	if len(records) == 0 {
		return emptyResult(format)
	}

	columns := append([]string(nil), records[0].Keys()...)
	known := make(map[string]bool, len(columns))
	for _, k := range columns {
		known[k] = true
	}

	var dropped []string
	for _, rec := range records[1:] {
		for _, k := range rec.Keys() {
			if known[k] {
				continue
			}
			known[k] = true
			if opts.Schema == SchemaUnion {
				columns = append(columns, k)
			} else {
				dropped = append(dropped, k)
			}
		}
	}

	res := emptyResult(format)
	res.Columns = columns
	res.Rows = make([]Record, 0, len(records))
	for _, rec := range truncate(records, opts.MaxRows, res) {
		out := NewRecord(len(columns))
		for _, k := range columns {
			v, ok := rec.Get(k)
			if !ok {
				out.Set(k, Null())
				continue
			}
			if s, isText := v.Str(); isText {
				v = CoerceText(s, opts.EmptyCells)
			}
			out.Set(k, v)
		}
		res.Rows = append(res.Rows, out)
	}

	for _, k := range dropped {
		res.Warnings = append(res.Warnings, fmt.Sprintf("column %q is missing from the first record and was ignored", k))
	}

	res.NumericKeys = NumericKeys(res.Rows, columns)
	res.XKey = firstNonNumeric(columns, res.NumericKeys)
	return res
}

// truncate caps records at max (when positive) and notes it on res.
func truncate[T any](items []T, max int, res *Result) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	res.Warnings = append(res.Warnings, fmt.Sprintf("dataset truncated to the first %d of %d rows", max, len(items)))
	return items[:max]
}
