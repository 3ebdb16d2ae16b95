package core

import (
	"fmt"
	"strings"
)

// UserMessage is the operator-facing form of an error.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // quoted to support
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// Patterns are matched against the lowercased error text; the first match
// wins, so narrower patterns go first.
var errorPatterns = []errorPattern{
	// DB: constraint and connectivity failures from PostgreSQL.
	{"duplicate key", UserMessage{"A record with this key already exists", "Use a different article or order number", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist", "Import reference data (users, pickup points) first", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist", "Import reference data (users, pickup points) first", "DB003"}},
	{"referenced by orders", UserMessage{"The product cannot be deleted", "Check whether it is part of any order", "DB008"}},
	{"record not found", UserMessage{"Record not found", "It may have been deleted. Refresh the list", "DB009"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// VAL: cell and form validation, see ValidationError reasons.
	{"invalid date", UserMessage{"Invalid date format detected", "Use DD.MM.YYYY or YYYY-MM-DD", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use digits with a decimal point or comma", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Fill in all required fields", "VAL003"}},
	{"missing required column", UserMessage{"Required column is missing from the file", "Check the header row against the expected column names", "VAL004"}},
	{"invalid integer", UserMessage{"Whole number expected", "Enter a number without fractions", "VAL005"}},
	{"invalid enum", UserMessage{"Value is not in the allowed list", "Check the allowed values for this field", "VAL006"}},
	{"must not be negative", UserMessage{"Value must not be negative", "Enter zero or a positive number", "VAL007"}},
	{"at least one product", UserMessage{"An order needs at least one product", "Add a product with a positive quantity", "VAL008"}},
	{"unknown value", UserMessage{"Selected value does not exist", "Choose a value from the list", "VAL009"}},
	{"exceeds the maximum value", UserMessage{"Value is too large", "Enter a smaller number", "VAL010"}},
	{"numeric field overflow", UserMessage{"Value is too large", "Enter a smaller number", "VAL010"}},

	// FILE
	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"unreadable file", UserMessage{"File could not be read as a spreadsheet", "Save it as XLSX or as CSV with a header row", "FILE002"}},
	{"file not found", UserMessage{"Source file not found", "Place the file in the import directory", "FILE003"}},
	{"no such file", UserMessage{"Source file not found", "Place the file in the import directory", "FILE003"}},
	{"empty file", UserMessage{"The file is empty", "Provide a file with data rows", "FILE004"}},

	// IMP
	{"import cancelled", UserMessage{"Import was cancelled", "Start a new import when ready", "IMP001"}},
	{"too many imports", UserMessage{"Another import is running", "Please wait for it to finish and try again", "IMP002"}},
	{"unresolved reference", UserMessage{"A referenced value could not be resolved", "Check category, supplier and manufacturer columns", "IMP003"}},
	{"unknown entity", UserMessage{"Unknown import entity", "Use one of: users, points, products, orders", "IMP004"}},

	// AUTH
	{"invalid credentials", UserMessage{"Wrong login or password", "Check your credentials or continue as guest", "AUTH001"}},
	{"permission denied", UserMessage{"You do not have access to this action", "Sign in with a manager or administrator account", "AUTH002"}},
	{"not authenticated", UserMessage{"You are not signed in", "Sign in to continue", "AUTH003"}},

	// REQ and RATE come from the HTTP layer.
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Please try again later", "REQ002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to its UserMessage. Unknown errors map to
// ERR000; the original error is only in the logs.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
