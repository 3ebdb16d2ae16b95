package core

// validation.go checks admin form input before it reaches the database.
//
// Imports are tolerant and coerce what they can; the admin forms are not.
// A product or order edited by hand must be fully valid, and the first
// problem found is returned as a *ValidationError naming the field.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation reasons. MapError keys user messages off these phrases.
const (
	ReasonRequired       = "required field is empty"
	ReasonInvalidNumber  = "invalid number"
	ReasonInvalidInteger = "invalid integer"
	ReasonInvalidDate    = "invalid date"
	ReasonNegative       = "must not be negative"
	ReasonNoItems        = "at least one product is required"
	ReasonUnknown        = "unknown value"
	ReasonTooLarge       = "exceeds the maximum value"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field  string // Field name
	Value  string // The invalid value
	Reason string // One of the Reason constants
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// requireText trims s and fails when it is empty.
func requireText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: field, Reason: ReasonRequired}
	}
	return s, nil
}

// MaxPrice is the largest price the product.price column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// requirePrice parses a non-negative price rounded to kopecks.
func requirePrice(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: field, Reason: ReasonRequired}
	}
	d, ok := ParseNumber(s)
	if !ok {
		return decimal.Zero, &ValidationError{Field: field, Value: s, Reason: ReasonInvalidNumber}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Value: s, Reason: ReasonNegative}
	}
	d = d.Round(2)
	if d.GreaterThan(MaxPrice) {
		return decimal.Zero, &ValidationError{Field: field, Value: s, Reason: ReasonTooLarge}
	}
	return d, nil
}

// optionalInt parses a whole number; empty input is zero.
func optionalInt(field, s string, allowNegative bool) (int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: s, Reason: ReasonInvalidInteger}
	}
	if n < 0 && !allowNegative {
		return 0, &ValidationError{Field: field, Value: s, Reason: ReasonNegative}
	}
	return int32(n), nil
}
