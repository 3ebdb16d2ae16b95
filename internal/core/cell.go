package core

// cell.go coerces raw spreadsheet cells into typed values.
//
// Source files are maintained by hand, so cells carry decimal commas,
// thousands spaces, Excel formula prefixes, dataframe "nan" tokens and
// dates as either text or workbook serial numbers. Numeric cells never
// abort a row on their own: what happens to an unparsable number is a
// CoercionPolicy decision.

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// CoercionPolicy decides what an unparsable numeric cell does to its row.
type CoercionPolicy int

const (
	// PolicyDefaultZero keeps the row with the value coerced to zero.
	PolicyDefaultZero CoercionPolicy = iota
	// PolicySkipRow skips the row.
	PolicySkipRow
)

// ParseCoercionPolicy maps a config value ("zero" or "skip") to a policy.
func ParseCoercionPolicy(s string) (CoercionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return PolicyDefaultZero, nil
	case "skip":
		return PolicySkipRow, nil
	default:
		return PolicyDefaultZero, fmt.Errorf("invalid enum for numeric policy: %q", s)
	}
}

// ParseConflictPolicy maps a config value ("ignore" or "replace") to a policy.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ConflictIgnore:
		return ConflictIgnore, nil
	case ConflictReplace:
		return ConflictReplace, nil
	default:
		return ConflictIgnore, fmt.Errorf("invalid enum for conflict policy: %q", s)
	}
}

// CellValue is a coerced cell. Only the field matching the kind is set.
type CellValue struct {
	Text   string
	Number decimal.Decimal
	Int    int64
	Date   time.Time
	Valid  bool // false for absent values
}

// CoercionIssue describes a cell that could not be parsed as its kind.
type CoercionIssue struct {
	Kind   CellKind
	Raw    string
	Reason string
	Skip   bool // the row must be skipped
}

func (i *CoercionIssue) Error() string {
	return fmt.Sprintf("%s: %q", i.Reason, i.Raw)
}

// Date layouts tried in order. Day-first layouts lead since the source
// spreadsheets are Russian-locale.
var dateLayouts = []string{
	"02.01.2006", "2.1.2006", "02.01.06",
	"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"02.01.2006 15:04:05", "02.01.2006 15:04",
	"2006/01/02", "02/01/2006",
}

// Excel serial day numbers accepted as dates (1900-01-01 .. 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParseCellAs coerces raw into kind.
//
// Absent values (empty or a missing token) are never an issue: they yield
// an invalid CellValue, which for numbers is zero. Identifier cells are
// returned as trimmed text for the reference normalizer.
func ParseCellAs(kind CellKind, raw string, policy CoercionPolicy) (CellValue, *CoercionIssue) {
	s := CleanCell(raw)
	if IsMissing(s) {
		return CellValue{Number: decimal.Zero}, nil
	}

	switch kind {
	case CellNumber, CellInteger:
		d, ok := ParseNumber(s)
		if !ok {
			return CellValue{Number: decimal.Zero}, &CoercionIssue{
				Kind:   kind,
				Raw:    raw,
				Reason: "invalid number",
				Skip:   policy == PolicySkipRow,
			}
		}
		if kind == CellInteger {
			d = d.Truncate(0)
			return CellValue{Number: d, Int: d.IntPart(), Valid: true}, nil
		}
		return CellValue{Number: d, Valid: true}, nil

	case CellDate:
		t, ok := ParseDate(s)
		if !ok {
			return CellValue{}, &CoercionIssue{Kind: kind, Raw: raw, Reason: "invalid date"}
		}
		return CellValue{Date: t, Valid: true}, nil

	default:
		return CellValue{Text: s, Valid: true}, nil
	}
}

// ParseNumber parses a decimal written with a comma or point separator and
// optional space or separator grouping ("1 234,50", "1.234,50", "1,234.50").
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(s, "₽")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "руб."), "р.")

	// With both separators present the last one is the decimal mark.
	comma, point := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && point >= 0 && comma > point:
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case comma >= 0 && point >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate parses a day-first or ISO date, or a workbook serial number.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(f, false)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// CleanCell trims whitespace and removes an Excel formula wrapper (="...").
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

// StripQuotes removes one layer of matching surrounding quotes.
func StripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ToPgDate converts a coerced date cell to pgtype.Date.
func ToPgDate(v CellValue) pgtype.Date {
	if !v.Valid || v.Date.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: v.Date, Valid: true}
}

// ToPgNumeric converts a decimal to pgtype.Numeric.
func ToPgNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt4 converts an optional id to pgtype.Int4. Zero is NULL.
func ToPgInt4(id int32) pgtype.Int4 {
	if id == 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: id, Valid: true}
}
