package ingest

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseJSON parses a JSON document. A top-level array yields one record per
// element and a single object yields one record; any other top-level value
// yields an empty result. Array elements must be objects.
func ParseJSON(text string, opts Options) (*Result, error) {
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: invalid JSON document", ErrMalformedInput)
	}

	doc := gjson.Parse(text)
	var items []gjson.Result
	switch {
	case doc.IsArray():
		items = doc.Array()
	case doc.IsObject():
		items = []gjson.Result{doc}
	default:
		return emptyResult(FormatJSON), nil
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("%w: element %d is %s, not an object", ErrMalformedInput, i, item.Type)
		}
		records = append(records, recordFromJSON(item))
	}
	return FromRecords(records, FormatJSON, opts), nil
}
