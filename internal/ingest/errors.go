package ingest

import "errors"

var (
	// ErrUnsupportedFormat is returned when no parser recognizes the input.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedInput is returned when structured input cannot be parsed.
	ErrMalformedInput = errors.New("malformed structured input")

	// ErrTooLarge is returned when input exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// ErrEncoding is returned when text cannot be decoded to UTF-8.
var ErrEncoding = errors.New("encoding error")
