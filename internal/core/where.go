package core

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder assembles a parameterised WHERE clause. Column expressions
// are always code constants; only values travel as arguments.
type WhereBuilder struct {
	conditions []string
	args       []interface{}
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{argIndex: 1}
}

// Add appends "col = $n". Empty values are skipped.
func (w *WhereBuilder) Add(col, val string) {
	if val == "" {
		return
	}
	w.AddExpr(col+" = ?", val)
}

// AddExpr appends a condition whose single "?" is replaced by the next
// placeholder.
func (w *WhereBuilder) AddExpr(expr string, arg interface{}) {
	w.conditions = append(w.conditions, strings.Replace(expr, "?", fmt.Sprintf("$%d", w.argIndex), 1))
	w.args = append(w.args, arg)
	w.argIndex++
}

// AddRaw appends a condition without arguments.
func (w *WhereBuilder) AddRaw(cond string) {
	w.conditions = append(w.conditions, cond)
}

// AddSearch matches query case-insensitively against any of cols, sharing
// one placeholder.
func (w *WhereBuilder) AddSearch(query string, cols ...string) {
	query = strings.TrimSpace(query)
	if query == "" || len(cols) == 0 {
		return
	}

	placeholder := fmt.Sprintf("$%d", w.argIndex)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s ILIKE %s", col, placeholder)
	}

	w.conditions = append(w.conditions, "("+strings.Join(parts, " OR ")+")")
	w.args = append(w.args, "%"+escapeLike(query)+"%")
	w.argIndex++
}

// AddTimestampRange restricts col to [start, end]. Zero times are open ends.
func (w *WhereBuilder) AddTimestampRange(col string, start, end time.Time) {
	if !start.IsZero() {
		w.AddExpr(col+" >= ?", start)
	}
	if !end.IsZero() {
		w.AddExpr(col+" <= ?", end)
	}
}

// NextArgIndex returns the number of the next placeholder, for appending
// LIMIT/OFFSET after the clause.
func (w *WhereBuilder) NextArgIndex() int {
	return w.argIndex
}

// Build returns " WHERE a AND b" and its arguments, or "" and nil.
func (w *WhereBuilder) Build() (string, []interface{}) {
	if len(w.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(w.conditions, " AND "), w.args
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
