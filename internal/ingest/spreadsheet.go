package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseSpreadsheet reads the first sheet of an XLSX workbook and applies the
// delimited-text rules to its cells: first non-blank row is the header, the
// x-axis is the first column.
func ParseSpreadsheet(data []byte, opts Options) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrMalformedInput, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return emptyResult(FormatSpreadsheet), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformedInput, sheets[0], err)
	}
	raw, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformedInput, sheets[0], err)
	}
	unformatNumbers(rows, raw)

	grid := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		grid = append(grid, row)
	}
	return fromGrid(grid, FormatSpreadsheet, opts), nil
}

// numberDecoration is what number formats add around digits: grouping,
// percent and currency signs, accounting parentheses.
var numberDecoration = strings.NewReplacer(",", "", "%", "", "$", "", "€", "", "£", "", "¥", "", "(", "", ")", "", " ", "")

// unformatNumbers replaces display text such as "1,234.50" or "25%" with the
// stored cell value when the display is a decorated number. Dates and times
// keep their display text.
func unformatNumbers(display, raw [][]string) {
	for i, row := range display {
		if i >= len(raw) {
			return
		}
		for j, cell := range row {
			if j >= len(raw[i]) {
				break
			}
			text := strings.TrimSpace(cell)
			if _, ok := parseNumber(text); ok {
				continue
			}
			if _, ok := parseNumber(numberDecoration.Replace(text)); !ok {
				continue
			}
			if _, ok := parseNumber(strings.TrimSpace(raw[i][j])); ok {
				row[j] = raw[i][j]
			}
		}
	}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
