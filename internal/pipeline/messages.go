package pipeline

// messages.go maps pipeline errors to user-facing messages with support codes.
//
// Codes by category:
//
//	SRC001 source file not found       SRC002 source file unparsable
//	TRN001 column missing for cleaning  TRN002 unparsable order date
//	VAL001 data-quality checks failed
//	RUN001 run already in progress      RUN002 run cancelled   RUN003 run timed out
//	DB001  connection refused           DB002  connection reset
//	DB003  authentication failed        DB004  unknown database driver
//	DB005  invalid table name           DB006  table not found
//	ERR000 anything else
//
// Sentinel errors are matched first with errors.Is. Driver errors carry no
// sentinels, so they fall through to case-insensitive substring patterns.
// The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/salesetl/internal/core"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/load"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Status  int    `json:"-"` // HTTP status for API responses
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{extract.ErrSourceNotFound, UserMessage{
		Message: "Source file not found",
		Action:  "Check SOURCE_PATH or the --source flag",
		Code:    "SRC001",
		Status:  http.StatusNotFound,
	}},
	{extract.ErrSourceUnparsable, UserMessage{
		Message: "Source file could not be parsed",
		Action:  "Ensure the file is delimited text with one header row and consistent columns",
		Code:    "SRC002",
		Status:  http.StatusUnprocessableEntity,
	}},
	{core.ErrMissingColumn, UserMessage{
		Message: "A column required by the cleaning rules is missing",
		Action:  "Check the source header or the columns section of the rules file",
		Code:    "TRN001",
		Status:  http.StatusUnprocessableEntity,
	}},
	{core.ErrUnparsableDate, UserMessage{
		Message: "An order date could not be parsed",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "TRN002",
		Status:  http.StatusUnprocessableEntity,
	}},
	{ErrValidationFailed, UserMessage{
		Message: "Data-quality checks failed. Data was not loaded",
		Action:  "Review the failed checks in the report, fix the source data and rerun",
		Code:    "VAL001",
		Status:  http.StatusUnprocessableEntity,
	}},
	{ErrRunInProgress, UserMessage{
		Message: "A pipeline run is already in progress",
		Action:  "Wait for the current run to finish and try again",
		Code:    "RUN001",
		Status:  http.StatusConflict,
	}},
	{context.Canceled, UserMessage{
		Message: "Run was cancelled",
		Action:  "Please try again",
		Code:    "RUN002",
		Status:  http.StatusServiceUnavailable,
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Run timed out",
		Action:  "Raise PIPELINE_TIMEOUT or check database responsiveness",
		Code:    "RUN003",
		Status:  http.StatusGatewayTimeout,
	}},
	{load.ErrUnknownDriver, UserMessage{
		Message: "Unknown database driver",
		Action:  "Set DB_DRIVER to sqlite, postgres or mysql",
		Code:    "DB004",
		Status:  http.StatusInternalServerError,
	}},
	{load.ErrInvalidTable, UserMessage{
		Message: "Invalid table name",
		Action:  "Use letters, digits and underscores only",
		Code:    "DB005",
		Status:  http.StatusBadRequest,
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
		Status:  http.StatusServiceUnavailable,
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
		Status:  http.StatusServiceUnavailable,
	}},
	{"password authentication failed", UserMessage{
		Message: "Database rejected the credentials",
		Action:  "Check DATABASE_URL",
		Code:    "DB003",
		Status:  http.StatusInternalServerError,
	}},
	{"access denied", UserMessage{
		Message: "Database rejected the credentials",
		Action:  "Check DATABASE_URL",
		Code:    "DB003",
		Status:  http.StatusInternalServerError,
	}},
	{"no such table", tableNotFound},
	{"doesn't exist", tableNotFound},
	{"does not exist", tableNotFound},
}

var tableNotFound = UserMessage{
	Message: "Table not found",
	Action:  "Run the pipeline to create the table or check the table name",
	Code:    "DB006",
	Status:  http.StatusNotFound,
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts an error into a user-friendly message.
// Returns the zero UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
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

// FormatUserError returns a single-line message for terminal output.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
