package ingest

import (
	"fmt"
	"strings"
)

var (
	delimitedExts   = []string{".csv", ".tsv", ".txt"}
	structuredExts  = []string{".json"}
	spreadsheetExts = []string{".xlsx"}
)

// Normalize sniffs the format of data and parses it. The file name is optional;
// without a recognized extension JSON is tried first, then delimited text.
// Binary content that is not a workbook fails with ErrUnsupportedFormat.
//
// A nil error does not imply a chartable result; see Result.State.
func Normalize(name string, data []byte, opts Options) (*Result, error) {
	lower := strings.ToLower(strings.TrimSpace(name))

	switch {
	case hasSuffix(lower, spreadsheetExts):
		return ParseSpreadsheet(data, opts)
	case hasSuffix(lower, delimitedExts):
		text, err := DecodeText(data)
		if err != nil {
			return nil, err
		}
		return ParseDelimited(text, opts), nil
	case hasSuffix(lower, structuredExts):
		text, err := DecodeText(data)
		if err != nil {
			return nil, err
		}
		return ParseJSON(text, opts)
	}

	return sniff(data, opts)
}

func sniff(data []byte, opts Options) (*Result, error) {
	if !isText(data) {
		if isSpreadsheet(data) {
			return ParseSpreadsheet(data, opts)
		}
		return nil, fmt.Errorf("%w: content is not CSV, JSON or XLSX", ErrUnsupportedFormat)
	}

	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if res, err := ParseJSON(text, opts); err == nil {
		return res, nil
	}
	return ParseDelimited(text, opts), nil
}

func hasSuffix(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
