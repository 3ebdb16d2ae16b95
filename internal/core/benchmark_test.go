package core

import (
	"bytes"
	"fmt"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// ============================================================================
// Cell Coercion Benchmarks
// ============================================================================

// BenchmarkParseNumber benchmarks numeric cell parsing.
// This is a hot path during import for price, discount and quantity columns.
func BenchmarkParseNumber(b *testing.B) {
	testCases := []string{
		"4990",
		"4990,50",     // Decimal comma
		"1 234,50",    // Grouped with spaces
		"1\u00a0234",  // Grouped with nbsp
		"1,234.56",    // Comma thousands
		"4 990 ₽",     // Currency suffix
		"  999.99  ",  // Whitespace
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseNumber(tc)
		}
	}
}

// BenchmarkParseDate benchmarks date cell parsing across accepted layouts.
func BenchmarkParseDate(b *testing.B) {
	testCases := []string{
		"05.03.2025",          // Day first
		"5.3.2025",            // Day first short
		"2025-03-05",          // ISO
		"2025-03-05 00:00:00", // ISO with time
		"45721",               // Workbook serial
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseDate(tc)
		}
	}
}

// BenchmarkCleanCell benchmarks the per-cell cleanup every value passes through.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"Ботинки",
		"  padded  ",
		`="0012"`,
		"NULL",
		"#N/A",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// BenchmarkParseLineItems benchmarks composite order item parsing.
func BenchmarkParseLineItems(b *testing.B) {
	raw := "А112Т4, 2, F635R4, 2, H782T5, 1, G783F5, 1, J384T6, 3"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		MergeLineItems(ParseLineItems(raw))
	}
}

// ============================================================================
// Table Reading Benchmarks
// ============================================================================

// productsCSV builds a product sheet with n rows.
func productsCSV(n int) string {
	var buf bytes.Buffer
	buf.WriteString("Артикул;Наименование товара;Цена;Действующая скидка;Кол-во на складе\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "A%05d;Ботинки %d;%d,50;%d;%d\n", i, i, 1000+i, i%30, i%20)
	}
	return buf.String()
}

// BenchmarkParseTable_UTF8 benchmarks sniffing and reading a UTF-8 sheet.
func BenchmarkParseTable_UTF8(b *testing.B) {
	data := []byte(productsCSV(1000))

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseTable(data, ReadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkParseTable_CP1251 benchmarks the legacy encoding fallback.
func BenchmarkParseTable_CP1251(b *testing.B) {
	encoded, err := charmap.Windows1251.NewEncoder().String(productsCSV(1000))
	if err != nil {
		b.Fatal(err)
	}
	data := []byte(encoded)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseTable(data, ReadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolveColumns benchmarks header matching against synonyms.
func BenchmarkResolveColumns(b *testing.B) {
	table, err := ParseTable([]byte(productsCSV(1)), ReadOptions{})
	if err != nil {
		b.Fatal(err)
	}
	specs := []FieldSpec{
		{Name: "article", Synonyms: []string{"Артикул", "Article"}, Type: CellText, Required: true},
		{Name: "name", Synonyms: []string{"Наименование товара", "Наименование", "Name"}, Type: CellText, Required: true},
		{Name: "price", Synonyms: []string{"Цена", "Price"}, Type: CellNumber, Required: true},
		{Name: "discount", Synonyms: []string{"Действующая скидка", "Скидка"}, Type: CellInteger},
		{Name: "quantity", Synonyms: []string{"Кол-во на складе", "Количество"}, Type: CellInteger},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ResolveColumns(table, specs); err != nil {
			b.Fatal(err)
		}
	}
}
