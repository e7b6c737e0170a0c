package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// fieldSep splits a delimited line. Comma and tab are both accepted on every
// line; quoting is not interpreted.
var fieldSep = regexp.MustCompile("[,\t]")

// ParseDelimited parses comma or tab separated text. It never fails: text
// without a header line yields an empty result.
func ParseDelimited(text string, opts Options) *Result {
	var grid [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		grid = append(grid, fieldSep.Split(line, -1))
	}
	return fromGrid(grid, FormatDelimited, opts)
}

// fromGrid builds a Result from a header row followed by data rows. Rows whose
// cells are all blank must already be removed.
func fromGrid(grid [][]string, format Format, opts Options) *Result {
	res := emptyResult(format)
	if len(grid) == 0 {
		return res
	}

	headers := headerNames(grid[0])
	for _, h := range headers {
		if !contains(res.Columns, h) {
			res.Columns = append(res.Columns, h)
		}
	}

	data := truncate(grid[1:], opts.MaxRows, res)
	res.Rows = make([]Record, 0, len(data))
	for _, cells := range data {
		rec := NewRecord(len(res.Columns))
		for i, h := range headers {
			cell := ""
			if i < len(cells) {
				cell = strings.TrimSpace(cells[i])
			}
			rec.Set(h, CoerceText(cell, opts.EmptyCells))
		}
		res.Rows = append(res.Rows, rec)
	}

	if len(res.Rows) == 0 {
		return res
	}
	res.NumericKeys = NumericKeys(res.Rows, res.Columns)
	x := res.Columns[0]
	res.XKey = &x
	return res
}

// headerNames trims header cells and names empty ones col_{position}.
func headerNames(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("col_%d", i+1)
		}
		out[i] = c
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
