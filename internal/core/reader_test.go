package core

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func cp1251(t *testing.T, s string) []byte {
	t.Helper()
	out, err := charmap.Windows1251.NewEncoder().String(s)
	if err != nil {
		t.Fatalf("encode cp1251: %v", err)
	}
	return []byte(out)
}

func workbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseTable_Encodings(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantFormat  string
		wantHeaders []string
		wantFirst   []string
	}{
		{
			name:        "utf-8 comma",
			data:        []byte("Артикул,Цена\nА112Т4,4990\nF635R4,3244\n"),
			wantFormat:  "csv (utf-8-sig, ',')",
			wantHeaders: []string{"Артикул", "Цена"},
			wantFirst:   []string{"А112Т4", "4990"},
		},
		{
			name:        "utf-8 bom semicolon",
			data:        []byte("\xef\xbb\xbfАртикул;Цена\nА112Т4;4990,50\n"),
			wantFormat:  "csv (utf-8-sig, ';')",
			wantHeaders: []string{"Артикул", "Цена"},
			wantFirst:   []string{"А112Т4", "4990,50"},
		},
		{
			name:        "cp1251 semicolon",
			data:        cp1251(t, "Артикул;Наименование товара\nА112Т4;Ботинки\n"),
			wantFormat:  "csv (windows-1251, ';')",
			wantHeaders: []string{"Артикул", "Наименование товара"},
			wantFirst:   []string{"А112Т4", "Ботинки"},
		},
		{
			name:        "tab separated",
			data:        []byte("login\tpassword\nuser1\tsecret\n"),
			wantFormat:  "csv (utf-8-sig, '\\t')",
			wantHeaders: []string{"login", "password"},
			wantFirst:   []string{"user1", "secret"},
		},
		{
			name:        "header whitespace trimmed",
			data:        []byte(" Логин , Пароль \nadmin,123\n"),
			wantFormat:  "csv (utf-8-sig, ',')",
			wantHeaders: []string{"Логин", "Пароль"},
			wantFirst:   []string{"admin", "123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable(tt.data, ReadOptions{})
			if err != nil {
				t.Fatalf("ParseTable() error = %v", err)
			}
			if table.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", table.Format, tt.wantFormat)
			}
			if !reflect.DeepEqual(table.Headers, tt.wantHeaders) {
				t.Errorf("Headers = %q, want %q", table.Headers, tt.wantHeaders)
			}
			if table.Len() == 0 || !reflect.DeepEqual(table.Rows[0], tt.wantFirst) {
				t.Errorf("first row = %q, want %q", table.Rows, tt.wantFirst)
			}
		})
	}
}

func TestParseTable_Workbook(t *testing.T) {
	data := workbook(t, [][]interface{}{
		{"Артикул", "Цена", "Описание товара"},
		{"А112Т4", 4990, "Женские ботинки"},
		{"F635R4", 3244.5},
		{},
		{"H782T5", 4499, ""},
	})

	table, err := ParseTable(data, ReadOptions{})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	if table.Format != "xlsx" {
		t.Errorf("Format = %q, want xlsx", table.Format)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	if got := table.Cell(1, 1); got != "3244.5" {
		t.Errorf("Cell(1, 1) = %q, want %q", got, "3244.5")
	}
	if got := table.Cell(1, 2); got != "" {
		t.Errorf("missing trailing cell = %q, want empty", got)
	}
	if got := table.Line(2); got != 5 {
		t.Errorf("Line(2) = %d, want 5 (blank row skipped)", got)
	}
}

func TestParseTable_Failures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts ReadOptions
		want error
	}{
		{name: "empty", data: []byte(""), want: ErrEmptyFile},
		{name: "whitespace only", data: []byte("  \n\n"), want: ErrEmptyFile},
		{name: "binary with NUL", data: []byte{0x00, 0x01, 0xff, 0xfe, 0x00, 'a', ',', 'b'}, want: ErrUnreadable},
		{name: "broken zip", data: []byte("PK\x03\x04garbage"), want: ErrUnreadable},
		{name: "single column not allowed", data: []byte("one\ntwo\nthree\n"), want: ErrUnreadable},
		{name: "header only", data: []byte("a,b\n"), want: ErrUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(tt.data, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseTable() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseTable_HeaderlessSingleColumn(t *testing.T) {
	data := []byte(" \"Main St 5\" \nnan\nSecond Ave 9\n")

	table, err := ParseTable(data, ReadOptions{Headerless: true, AllowSingleColumn: true})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	if !reflect.DeepEqual(table.Headers, []string{"0"}) {
		t.Errorf("Headers = %q, want [0]", table.Headers)
	}
	if table.Line(0) != 1 {
		t.Errorf("Line(0) = %d, want 1", table.Line(0))
	}
}

func TestParseTable_HeaderlessPadsRows(t *testing.T) {
	table, err := ParseTable([]byte("a,b,c\nd\ne,f\n"), ReadOptions{Headerless: true})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if table.Width() != 3 || table.Len() != 3 {
		t.Fatalf("shape = %dx%d, want 3x3", table.Len(), table.Width())
	}
	if table.Cell(1, 2) != "" {
		t.Errorf("padded cell = %q, want empty", table.Cell(1, 2))
	}
}

func TestParseTable_DropsMalformedRows(t *testing.T) {
	table, err := ParseTable([]byte("a,b\n1,2\n3\n4,5\n"), ReadOptions{})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	if table.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", table.Dropped)
	}
	if !reflect.DeepEqual(table.Lines, []int{2, 4}) {
		t.Errorf("Lines = %v, want [2 4]", table.Lines)
	}
}

func TestReadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Tovar.csv")
	if err := os.WriteFile(path, []byte("Артикул,Цена\nА112Т4,4990\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("reads file", func(t *testing.T) {
		table, err := ReadTable(path, ReadOptions{})
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		if table.Len() != 1 {
			t.Errorf("Len() = %d, want 1", table.Len())
		}
	})

	t.Run("size limit", func(t *testing.T) {
		_, err := ReadTable(path, ReadOptions{MaxFileSize: 4})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("error = %v, want ErrFileTooLarge", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadTable(filepath.Join(dir, "nope.csv"), ReadOptions{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})
}
