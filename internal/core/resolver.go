package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MissingFieldsError reports required fields with no matching header.
type MissingFieldsError struct {
	Missing   []string // canonical names
	Available []string // headers found in the file
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required column(s) %s; available headers: %s",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Resolution maps canonical field names to column positions.
type Resolution struct {
	index   map[string]int
	headers map[string]string
}

// Index returns the column of a field, or -1 when it was not resolved.
func (r Resolution) Index(field string) int {
	if i, ok := r.index[field]; ok {
		return i
	}
	return -1
}

// Has reports whether a field was resolved.
func (r Resolution) Has(field string) bool {
	_, ok := r.index[field]
	return ok
}

// Header returns the source header a field was matched against.
func (r Resolution) Header(field string) string {
	return r.headers[field]
}

// Cell returns the raw value of a field in a row, "" when unresolved.
func (r Resolution) Cell(t *SourceTable, row int, field string) string {
	i := r.Index(field)
	if i < 0 {
		return ""
	}
	return t.Cell(row, i)
}

// ResolveColumns matches each field's synonyms against the table headers.
// Matching is exact on trimmed headers and the first synonym in list order
// wins. Optional fields that do not match are simply absent.
func ResolveColumns(t *SourceTable, specs []FieldSpec) (Resolution, error) {
	positions := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		h = strings.TrimSpace(h)
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}

	res := Resolution{
		index:   make(map[string]int, len(specs)),
		headers: make(map[string]string, len(specs)),
	}
	var missing []string

	for _, spec := range specs {
		found := false
		for _, syn := range spec.Synonyms {
			if i, ok := positions[syn]; ok {
				res.index[spec.Name] = i
				res.headers[spec.Name] = syn
				found = true
				break
			}
		}
		if !found && spec.Required {
			missing = append(missing, spec.Name)
		}
	}

	if len(missing) > 0 {
		return Resolution{}, &MissingFieldsError{Missing: missing, Available: t.Headers}
	}
	return res, nil
}

// Synonyms holds extra header spellings: entity -> field -> synonyms.
type Synonyms map[string]map[string][]string

// LoadSynonyms reads a YAML synonyms file of the form
//
//	products:
//	  price: ["Стоимость"]
func LoadSynonyms(path string) (Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	var syn Synonyms
	if err := yaml.Unmarshal(data, &syn); err != nil {
		return nil, fmt.Errorf("parse synonyms file %s: %w", path, err)
	}
	return syn, nil
}

// Apply returns a copy of specs with extra synonyms for entity appended
// after the built-in ones.
func (s Synonyms) Apply(entity string, specs []FieldSpec) []FieldSpec {
	extra := s[entity]
	out := make([]FieldSpec, len(specs))
	for i, spec := range specs {
		spec.Synonyms = append(append([]string(nil), spec.Synonyms...), extra[spec.Name]...)
		out[i] = spec
	}
	return out
}
