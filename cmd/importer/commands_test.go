package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/shoestore/internal/core"
)

func TestPrintReport(t *testing.T) {
	products := &core.FileResult{Entity: "products", File: "Tovar.xlsx", Format: "xlsx", RowsSeen: 30, RowsInserted: 29}
	for i := 0; i < maxPrintedDiagnostics+5; i++ {
		products.Skip(i+2, "price", "invalid number")
	}
	orders := &core.FileResult{Entity: "orders", File: "Заказ_import.xlsx"}
	orders.Fail(errors.New("missing required column: status"))

	report := &core.ImportReport{
		RunID:    "run-1",
		Files:    []*core.FileResult{products, orders},
		Duration: 1500 * time.Millisecond,
	}

	t.Run("truncated diagnostics", func(t *testing.T) {
		var buf bytes.Buffer
		printReport(&buf, report, false)
		out := buf.String()

		if !strings.Contains(out, "run run-1: 29 of 30 rows inserted in 1.5s") {
			t.Errorf("missing totals line:\n%s", out)
		}
		if !strings.Contains(out, "missing required column: status") {
			t.Errorf("missing file error:\n%s", out)
		}
		if !strings.Contains(out, "orders: Required column is missing from the file (Code: VAL004)") {
			t.Errorf("missing hint:\n%s", out)
		}
		if !strings.Contains(out, "... 5 more (use --verbose)") {
			t.Errorf("diagnostics not truncated:\n%s", out)
		}
		if !strings.Contains(out, "line 2, price: invalid number") {
			t.Errorf("missing first diagnostic:\n%s", out)
		}
	})

	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		printReport(&buf, report, true)
		if strings.Contains(buf.String(), "more (use --verbose)") {
			t.Error("verbose output should list every diagnostic")
		}
	})
}

func TestResetRequiresConfirmation(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"reset", "--env-file", "does-not-exist.env"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("Execute() error = %v, want confirmation error", err)
	}
}
