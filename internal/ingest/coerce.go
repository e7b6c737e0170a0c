package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex matches decimal integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// EmptyCellMode controls how an empty (or whitespace-only) cell is coerced.
type EmptyCellMode int

const (
	// EmptyAsNull stores empty cells as Null.
	EmptyAsNull EmptyCellMode = iota
	// EmptyAsZero stores empty cells as the number 0, matching a naive
	// numeric conversion of the empty string.
	EmptyAsZero
)

func (m EmptyCellMode) String() string {
	if m == EmptyAsZero {
		return "zero"
	}
	return "null"
}

// ParseEmptyCellMode parses "null" or "zero".
func ParseEmptyCellMode(s string) (EmptyCellMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null":
		return EmptyAsNull, nil
	case "zero":
		return EmptyAsZero, nil
	default:
		return EmptyAsNull, fmt.Errorf("unknown empty cell mode %q", s)
	}
}

// CoerceText converts s to a number when its trimmed form is a finite number,
// otherwise it keeps s unchanged as text.
func CoerceText(s string, mode EmptyCellMode) Value {
	t := strings.TrimSpace(s)
	if t == "" {
		if mode == EmptyAsZero {
			return Number(0)
		}
		return Null()
	}
	if f, ok := parseNumber(t); ok {
		return Number(f)
	}
	return Text(s)
}

// parseNumber accepts decimal notation plus 0x, 0o and 0b integer literals.
func parseNumber(s string) (float64, bool) {
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
