package core

// reader.go loads source files of unknown format into a SourceTable.
//
// Files arrive either as XLSX workbooks or as CSV exports of them, with no
// reliable hint about encoding or separator. ReadTable tries the workbook
// first, then every encoding × separator candidate in a fixed order, and
// accepts the first interpretation that produces a multi-column table.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrUnreadable is returned when no candidate interpretation yields a table.
	ErrUnreadable = errors.New("unreadable file")

	// ErrFileTooLarge is returned for files above ReadOptions.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-length or whitespace-only files.
	ErrEmptyFile = errors.New("empty file")
)

var (
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte("\xef\xbb\xbf")
)

// ReadOptions controls how a source file is interpreted.
type ReadOptions struct {
	// Headerless keeps the first row as data and names columns "0", "1", ...
	Headerless bool

	// AllowSingleColumn accepts a one-column result as a last resort.
	AllowSingleColumn bool

	// MaxFileSize rejects larger files before reading. Zero means no limit.
	MaxFileSize int64
}

// SourceTable is the in-memory result of reading one file.
type SourceTable struct {
	Headers []string
	Rows    [][]string
	Lines   []int  // 1-based source line of each row, for diagnostics
	Format  string // "xlsx" or "csv (encoding, separator)"
	Dropped int    // malformed lines skipped while reading
}

// Len returns the number of data rows.
func (t *SourceTable) Len() int {
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *SourceTable) Width() int {
	return len(t.Headers)
}

// Cell returns the raw value at row, col or "" when out of range.
func (t *SourceTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Line returns the source line of a data row.
func (t *SourceTable) Line(row int) int {
	if row < 0 || row >= len(t.Lines) {
		return 0
	}
	return t.Lines[row]
}

type textEncoding struct {
	name   string
	decode func([]byte) ([]byte, bool)
}

// textEncodings are tried in order. The first is strict so that cp1251
// input falls through to the cp1251 candidate instead of decoding to garbage.
var textEncodings = []textEncoding{
	{name: "utf-8-sig", decode: decodeUTF8Strict},
	{name: "windows-1251", decode: decodeWindows1251},
	{name: "utf-8", decode: decodeUTF8Lenient},
}

var separators = []rune{',', ';', '\t'}

// ReadTable reads the file at path into a SourceTable.
func ReadTable(path string, opts ReadOptions) (*SourceTable, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrFileTooLarge, info.Size(), opts.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	table, err := ParseTable(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ParseTable interprets raw file content. It never panics.
func ParseTable(data []byte, opts ReadOptions) (*SourceTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	if t, ok := readWorkbook(data, opts); ok {
		return t, nil
	}

	// Text exports never contain NUL bytes; binary junk usually does.
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, ErrUnreadable
	}

	for _, enc := range textEncodings {
		text, ok := enc.decode(data)
		if !ok {
			continue
		}
		for _, sep := range separators {
			t := readDelimited(text, sep, opts.Headerless)
			if t.Width() > 1 && t.Len() > 0 {
				t.Format = fmt.Sprintf("csv (%s, %q)", enc.name, sep)
				return t, nil
			}
		}
	}

	if opts.AllowSingleColumn {
		for _, enc := range textEncodings {
			text, ok := enc.decode(data)
			if !ok {
				continue
			}
			t := readLines(text, opts.Headerless)
			if t.Len() > 0 {
				t.Format = fmt.Sprintf("text (%s)", enc.name)
				return t, nil
			}
		}
	}

	return nil, ErrUnreadable
}

// readWorkbook reads the first sheet of an XLSX workbook.
func readWorkbook(data []byte, opts ReadOptions) (t *SourceTable, ok bool) {
	if !bytes.HasPrefix(data, zipMagic) {
		return nil, false
	}

	defer func() {
		if r := recover(); r != nil {
			t, ok = nil, false
		}
	}()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, false
	}

	// Raw values keep dates as serial numbers instead of locale formatting.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, false
	}

	var records [][]string
	var lines []int
	for i, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		records = append(records, row)
		lines = append(lines, i+1)
	}

	t = buildTable(records, lines, opts.Headerless, true)
	if t.Len() == 0 || (t.Width() < 2 && !opts.AllowSingleColumn) {
		return nil, false
	}
	t.Format = "xlsx"
	return t, true
}

// readDelimited parses text with one separator, dropping malformed lines.
func readDelimited(text []byte, sep rune, headerless bool) *SourceTable {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	var lines []int
	dropped := 0

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				dropped++
				continue
			}
			break
		}
		if isEmptyRow(rec) {
			continue
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}

	t := buildTable(records, lines, headerless, false)
	t.Dropped += dropped
	return t
}

// readLines treats every non-empty line as a single cell.
func readLines(text []byte, headerless bool) *SourceTable {
	var records [][]string
	var lines []int
	for i, line := range strings.Split(string(text), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, []string{line})
		lines = append(lines, i+1)
	}
	return buildTable(records, lines, headerless, false)
}

// buildTable shapes raw records into a table. Headerless tables are padded
// to their widest row. Otherwise the first record is the header and rows of
// a different width are dropped; ragged (workbook) rows are padded first,
// since spreadsheets omit trailing empty cells.
func buildTable(records [][]string, lines []int, headerless, ragged bool) *SourceTable {
	t := &SourceTable{}
	if len(records) == 0 {
		return t
	}

	if headerless {
		width := 0
		for _, rec := range records {
			if len(rec) > width {
				width = len(rec)
			}
		}
		t.Headers = make([]string, width)
		for i := range t.Headers {
			t.Headers[i] = strconv.Itoa(i)
		}
		for i, rec := range records {
			t.Rows = append(t.Rows, pad(rec, width))
			t.Lines = append(t.Lines, lines[i])
		}
		return t
	}

	header := records[0]
	if ragged {
		header = trimTrailingEmpty(header)
	}
	t.Headers = make([]string, len(header))
	for i, h := range header {
		t.Headers[i] = strings.TrimSpace(h)
	}
	width := len(t.Headers)

	for i, rec := range records[1:] {
		if ragged {
			rec = trimTrailingEmpty(rec)
			if len(rec) <= width {
				rec = pad(rec, width)
			}
		}
		if len(rec) != width {
			t.Dropped++
			continue
		}
		t.Rows = append(t.Rows, rec)
		t.Lines = append(t.Lines, lines[i+1])
	}
	return t
}

func pad(rec []string, width int) []string {
	if len(rec) >= width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

func trimTrailingEmpty(rec []string) []string {
	n := len(rec)
	for n > 0 && strings.TrimSpace(rec[n-1]) == "" {
		n--
	}
	return rec[:n]
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func decodeUTF8Strict(data []byte) ([]byte, bool) {
	if !utf8.Valid(bytes.TrimPrefix(data, utf8BOM)) {
		return nil, false
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodeWindows1251(data []byte) ([]byte, bool) {
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodeUTF8Lenient(data []byte) ([]byte, bool) {
	text := strings.ToValidUTF8(string(bytes.TrimPrefix(data, utf8BOM)), "�")
	return []byte(text), true
}
