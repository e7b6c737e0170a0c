package ingest

// decode.go turns uploaded bytes into text the parsers can work with.
//
// Spreadsheet exports from Windows tools often start with a byte order mark
// or are saved as UTF-16. DecodeText strips UTF-8 and UTF-16 BOMs, transcodes
// UTF-16 to UTF-8 and replaces invalid UTF-8 sequences with U+FFFD.

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ReadLimited reads all of r, failing with ErrTooLarge once more than max
// bytes have been read. A max of zero or less disables the limit.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// DecodeText converts raw bytes into UTF-8 text.
func DecodeText(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return string(out), nil
}

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// isText reports whether data looks like text rather than a binary asset.
func isText(data []byte) bool {
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		return true
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// isSpreadsheet reports whether data is an XLSX workbook.
func isSpreadsheet(data []byte) bool {
	return mimetype.Detect(data).Is(xlsxMIME)
}

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
