package core

import (
	"testing"
	"time"
)

func TestNewWhereBuilder(t *testing.T) {
	wb := NewWhereBuilder()

	if wb.argIndex != 1 {
		t.Errorf("expected argIndex to be 1, got %d", wb.argIndex)
	}
	if len(wb.conditions) != 0 || len(wb.args) != 0 {
		t.Errorf("expected empty builder, got %v %v", wb.conditions, wb.args)
	}
}

func TestWhereBuilder_Build_Empty(t *testing.T) {
	whereClause, args := NewWhereBuilder().Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	wb := NewWhereBuilder()
	wb.Add("c.category_name", "")
	wb.Add("c.category_name", "Женская обувь")
	wb.Add("s.supplier_name", "Kari")

	whereClause, args := wb.Build()

	want := " WHERE c.category_name = $1 AND s.supplier_name = $2"
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 2 || args[0] != "Женская обувь" || args[1] != "Kari" {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilder_AddExprAndRaw(t *testing.T) {
	wb := NewWhereBuilder()
	wb.AddRaw("p.quantity > 0")
	wb.AddExpr("p.discount > ?", 15)

	whereClause, args := wb.Build()

	want := " WHERE p.quantity > 0 AND p.discount > $1"
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 1 || args[0] != 15 {
		t.Errorf("args = %v", args)
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		cols       []string
		wantClause string
		wantArg    string
	}{
		{name: "empty query", query: "  ", cols: []string{"p.name"}, wantClause: ""},
		{name: "no columns", query: "boot", wantClause: ""},
		{
			name:       "single column",
			query:      "boot",
			cols:       []string{"p.name"},
			wantClause: " WHERE (p.name ILIKE $1)",
			wantArg:    "%boot%",
		},
		{
			name:       "shared placeholder",
			query:      "кожа",
			cols:       []string{"p.name", "p.description"},
			wantClause: " WHERE (p.name ILIKE $1 OR p.description ILIKE $1)",
			wantArg:    "%кожа%",
		},
		{
			name:       "wildcards escaped",
			query:      "50%_off",
			cols:       []string{"p.name"},
			wantClause: " WHERE (p.name ILIKE $1)",
			wantArg:    `%50\%\_off%`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.AddSearch(tt.query, tt.cols...)

			gotClause, gotArgs := wb.Build()
			if gotClause != tt.wantClause {
				t.Errorf("clause = %q, want %q", gotClause, tt.wantClause)
			}
			if tt.wantArg == "" {
				if len(gotArgs) != 0 {
					t.Errorf("expected no args, got %v", gotArgs)
				}
				return
			}
			if len(gotArgs) != 1 || gotArgs[0] != tt.wantArg {
				t.Errorf("args = %v, want [%q]", gotArgs, tt.wantArg)
			}
		})
	}
}

func TestWhereBuilder_NextArgIndex(t *testing.T) {
	wb := NewWhereBuilder()
	if wb.NextArgIndex() != 1 {
		t.Errorf("expected initial NextArgIndex to be 1, got %d", wb.NextArgIndex())
	}

	wb.Add("entity", "products")
	if wb.NextArgIndex() != 2 {
		t.Errorf("expected NextArgIndex after 1 add to be 2, got %d", wb.NextArgIndex())
	}

	wb.AddTimestampRange("created_at", time.Now().Add(-time.Hour), time.Now())
	if wb.NextArgIndex() != 4 {
		t.Errorf("expected NextArgIndex after timestamp range to be 4, got %d", wb.NextArgIndex())
	}

	wb.AddTimestampRange("created_at", time.Time{}, time.Time{})
	if wb.NextArgIndex() != 4 {
		t.Errorf("zero range must not add conditions, got %d", wb.NextArgIndex())
	}
}
