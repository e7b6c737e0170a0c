package core

// # Error Codes Reference
//
// Every failed ingestion is shown to the user with a message, a suggested
// action and a code they can quote to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Action: Split the file or remove unused columns
//	FILE002 - Unsupported format: Unsupported file format. Use CSV or JSON.
//	          Action: Upload a .csv, .tsv, .json or .xlsx file
//	FILE003 - Encoding error: File contains invalid characters
//	          Action: Save the file as UTF-8
//	FILE004 - No file: No file was selected
//	          Action: Choose a CSV or JSON file to upload
//	FILE005 - Empty dataset: No rows detected. Please check your file.
//	          Action: Add a header line and at least one data row
//	FILE006 - Malformed input: The file could not be parsed
//	          Action: Check that JSON is an array of objects
//
// # Network Errors (NET001-NET099)
//
//	NET001 - Proxy failure: the backend's own message, shown verbatim
//	         Action: Check the URL and try again
//	NET002 - Missing URL: Missing required 'url' field
//	         Action: Enter the address of a CSV or JSON dataset
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many datasets are being processed
//	UPL003 - Superseded: A newer request replaced this one
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred. Check the logs for the original error.
//
// # Matching
//
// Proxy failures are matched with errors.As first, so a backend message
// survives even when it wraps a context error. Known sentinel errors are
// matched with errors.Is next. Anything else falls through to
// case-insensitive substring patterns, where the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/JonMunkholm/graphupload/internal/proxy"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file or remove unused columns",
		Code:    "FILE001",
	}
	msgUnsupported = UserMessage{
		Message: "Unsupported file format. Use CSV or JSON.",
		Action:  "Upload a .csv, .tsv, .json or .xlsx file",
		Code:    "FILE002",
	}
	msgEncoding = UserMessage{
		Message: "File contains invalid characters",
		Action:  "Save the file as UTF-8",
		Code:    "FILE003",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Choose a CSV or JSON file to upload",
		Code:    "FILE004",
	}
	msgEmpty = UserMessage{
		Message: ingest.StateEmptyDataset.Message(),
		Action:  "Add a header line and at least one data row",
		Code:    "FILE005",
	}
	msgMalformed = UserMessage{
		Message: "The file could not be parsed",
		Action:  "Check that JSON is an array of objects",
		Code:    "FILE006",
	}
	msgMissingURL = UserMessage{
		Message: "Missing required 'url' field",
		Action:  "Enter the address of a CSV or JSON dataset",
		Code:    "NET002",
	}
	msgBusy = UserMessage{
		Message: "Too many datasets are being processed",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgStale = UserMessage{
		Message: "A newer request replaced this one",
		Action:  "No action needed",
		Code:    "UPL003",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// errorSentinels maps wrapped sentinel errors to user messages.
// Order matters: a proxy failure wrapping a deadline is reported by the
// proxy branch in MapError before this table is consulted.
var errorSentinels = []struct {
	target error
	msg    UserMessage
}{
	{ingest.ErrTooLarge, msgTooLarge},
	{ingest.ErrUnsupportedFormat, msgUnsupported},
	{ingest.ErrEncoding, msgEncoding},
	{ingest.ErrMalformedInput, msgMalformed},
	{ErrNoFile, msgNoFile},
	{ErrEmptyDataset, msgEmpty},
	{proxy.ErrMissingURL, msgMissingURL},
	{ErrTooManyIngestions, msgBusy},
	{ErrStaleIngestion, msgStale},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that lost their sentinel, typically ones that
// crossed a process boundary as plain text. Matched case-insensitively.
var errorPatterns = []errorPattern{
	{"file too large", msgTooLarge},
	{"request body too large", msgTooLarge},
	{"unsupported format", msgUnsupported},
	{"encoding error", msgEncoding},
	{"no file provided", msgNoFile},
	{"no such file", msgNoFile},
	{"empty dataset", msgEmpty},
	{"malformed", msgMalformed},
	{"missing required 'url'", msgMissingURL},
	{"too many concurrent", msgBusy},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := ingest.Normalize("photo.png", data, opts)
//	msg := MapError(err)
//	// msg.Code == "FILE002"
//	// msg.Message == "Unsupported file format. Use CSV or JSON."
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pe *proxy.Error
	if errors.As(err, &pe) {
		return UserMessage{
			Message: pe.Message,
			Action:  "Check the URL and try again",
			Code:    "NET001",
		}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// HTTPStatus returns the response status for a mapped error.
func HTTPStatus(err error) int {
	var pe *proxy.Error
	if errors.As(err, &pe) && pe.Status != 0 {
		return pe.Status
	}

	switch MapError(err).Code {
	case "":
		return http.StatusOK
	case msgTooLarge.Code:
		return http.StatusRequestEntityTooLarge
	case msgUnsupported.Code:
		return http.StatusUnsupportedMediaType
	case msgEncoding.Code, msgNoFile.Code, msgEmpty.Code, msgMalformed.Code, msgMissingURL.Code:
		return http.StatusBadRequest
	case msgBusy.Code:
		return http.StatusServiceUnavailable
	case msgStale.Code:
		return http.StatusConflict
	case msgCancelled.Code:
		return http.StatusRequestTimeout
	case msgTimeout.Code:
		return http.StatusGatewayTimeout
	case msgRateLimited.Code:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
