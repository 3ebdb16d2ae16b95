package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(context.Context) (pgx.Tx, error)
}

// CellKind is the target type a source cell is coerced into.
type CellKind int

const (
	CellText CellKind = iota
	CellNumber
	CellInteger
	CellIdentifier
	CellDate
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellInteger:
		return "integer"
	case CellIdentifier:
		return "identifier"
	case CellDate:
		return "date"
	default:
		return "unknown"
	}
}

// FieldSpec describes one canonical field of an import file.
type FieldSpec struct {
	Name     string    // Canonical field name: "login", "price"
	Synonyms []string  // Accepted header spellings, first match wins
	Type     CellKind  // Target type
	Required bool      // File is rejected when no synonym matches
}

// EntityInfo contains display and ordering information about an import entity.
type EntityInfo struct {
	Key        string `json:"key"`        // Unique identifier: "products"
	Label      string `json:"label"`      // Display name: "Products"
	Order      int    `json:"order"`      // Pipeline position, ascending
	Headerless bool   `json:"headerless"` // Source file has no header row
}

// ImportFunc imports the rows of one resolved source table.
type ImportFunc func(ctx context.Context, ic *ImportContext) error

// ImportDefinition contains everything needed to import one entity.
type ImportDefinition struct {
	Info       EntityInfo
	FieldSpecs []FieldSpec
	Import     ImportFunc
}

// ConflictPolicy decides what happens when an imported row's natural key
// already exists.
type ConflictPolicy string

const (
	ConflictIgnore  ConflictPolicy = "ignore"
	ConflictReplace ConflictPolicy = "replace"
)

// ImportOptions carries the policies an entity importer must honour.
type ImportOptions struct {
	Conflict map[string]ConflictPolicy // entity key -> policy, default ignore
	Coercion CoercionPolicy

	// HashPassword transforms imported passwords. Nil stores them as given.
	HashPassword func(string) (string, error)
}

// ConflictFor returns the configured policy for an entity.
func (o ImportOptions) ConflictFor(entity string) ConflictPolicy {
	if p, ok := o.Conflict[entity]; ok {
		return p
	}
	return ConflictIgnore
}

// ImportContext is handed to an ImportFunc for one source file.
type ImportContext struct {
	DB      TxBeginner
	Table   *SourceTable
	Columns Resolution
	Options ImportOptions
	Result  *FileResult
	Log     *slog.Logger
}

// Diagnostic explains why a row was skipped or altered.
type Diagnostic struct {
	Line   int    `json:"line"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// FileResult contains the outcome of importing one source file.
type FileResult struct {
	Entity       string        `json:"entity"`
	File         string        `json:"file"`
	Format       string        `json:"format,omitempty"`
	RowsSeen     int           `json:"rowsSeen"`
	RowsInserted int           `json:"rowsInserted"`
	Skipped      int           `json:"skipped"`
	Duplicates   int           `json:"duplicates"`
	Dropped      int           `json:"dropped"`
	Diagnostics  []Diagnostic  `json:"diagnostics,omitempty"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	Hint         string        `json:"hint,omitempty"`
	Err          error         `json:"-"`
}

// Skip records a skipped row.
func (r *FileResult) Skip(line int, field, reason string) {
	r.Skipped++
	r.Note(line, field, reason)
}

// Note records a diagnostic without skipping the row.
func (r *FileResult) Note(line int, field, reason string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Line: line, Field: field, Reason: reason})
}

// Fail marks the file as aborted.
func (r *FileResult) Fail(err error) {
	r.Err = err
	r.Error = err.Error()
	if IsUserFacing(err) {
		r.Hint = FormatUserError(err)
	}
}

// ImportReport aggregates the results of one ImportAll run.
type ImportReport struct {
	RunID    string        `json:"runId"`
	Dir      string        `json:"dir"`
	Files    []*FileResult `json:"files"`
	Duration time.Duration `json:"duration"`
}

// Totals sums rows seen and inserted over all files.
func (r *ImportReport) Totals() (seen, inserted int) {
	for _, f := range r.Files {
		seen += f.RowsSeen
		inserted += f.RowsInserted
	}
	return seen, inserted
}

// Failed reports whether any file was aborted.
func (r *ImportReport) Failed() bool {
	for _, f := range r.Files {
		if f.Err != nil {
			return true
		}
	}
	return false
}
