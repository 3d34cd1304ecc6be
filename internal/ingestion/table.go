package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/cashflow/posrecon/internal/bankconfig"
)

// table is a decoded sheet: a header row and data rows whose cells are
// either string or float64.
type table struct {
	headers   []string
	rows      [][]any
	encoding  string
	delimiter rune
	sheet     string
	malformed int
}

// decodeOptions carries the per-bank reading settings.
type decodeOptions struct {
	delimiter rune // 0: sniff from the header line
	encoding  string
	skipRows  int
	sheet     string
}

func optionsFor(b *bankconfig.Bank, sheet string) decodeOptions {
	if b == nil {
		return decodeOptions{sheet: sheet}
	}
	opts := decodeOptions{
		delimiter: b.Comma(),
		encoding:  b.Encoding,
		skipRows:  b.SkipRows,
		sheet:     b.Sheet,
	}
	if sheet != "" {
		opts.sheet = sheet
	}
	return opts
}

func decode(name string, data []byte, opts decodeOptions) (*table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return decodeXLSX(data, opts)
	case ".xls":
		return decodeXLS(data, opts)
	case ".csv":
		return decodeCSV(data, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// --- spreadsheets ---

func decodeXLSX(data []byte, opts decodeOptions) (*table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opts.sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if opts.skipRows > 0 && opts.skipRows < len(rows) {
		rows = rows[opts.skipRows:]
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyFile
	}

	t := &table{headers: trimAll(rows[0]), sheet: sheet}
	for i, raw := range rows[1:] {
		if isBlank(raw) {
			continue
		}
		rowNum := i + 2 + opts.skipRows
		row := make([]any, len(t.headers))
		for j := range row {
			if j >= len(raw) {
				row[j] = ""
				continue
			}
			row[j] = xlsxCell(f, sheet, j+1, rowNum, raw[j])
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// xlsxCell keeps numeric cells as float64 so that Excel numbers and date
// serials are not run through the locale parser.
func xlsxCell(f *excelize.File, sheet string, col, row int, raw string) any {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate, excelize.CellTypeFormula:
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v
		}
	}
	return raw
}

func decodeXLS(data []byte, opts decodeOptions) (*table, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	names := make([]string, wb.NumSheets())
	for i := range names {
		if ws := wb.GetSheet(i); ws != nil {
			names[i] = ws.Name
		}
	}
	idx, ok := sheetIndex(names, opts.sheet)
	if !ok {
		return nil, fmt.Errorf("read sheet %q: not found", opts.sheet)
	}
	sheet := wb.GetSheet(idx)
	if sheet == nil {
		return nil, ErrEmptyFile
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	if opts.skipRows > 0 && opts.skipRows < len(rows) {
		rows = rows[opts.skipRows:]
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	t := &table{headers: trimAll(rows[0]), sheet: sheet.Name}
	for _, raw := range rows[1:] {
		if isBlank(raw) {
			continue
		}
		t.rows = append(t.rows, padRow(raw, len(t.headers)))
	}
	return t, nil
}

// sheetIndex picks the sheet named want, comparing case-insensitively, or
// the first sheet when want is empty.
func sheetIndex(names []string, want string) (int, bool) {
	if want == "" {
		return 0, len(names) > 0
	}
	for i, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(want)) {
			return i, true
		}
	}
	return 0, false
}

// --- delimited text ---

// encodingChain lists the fallback encodings tried after the configured one.
var encodingChain = []string{"utf-8", "utf-8-sig", "iso-8859-9", "cp1254"}

var singleByte = map[string]encoding.Encoding{
	"iso-8859-9":   charmap.ISO8859_9,
	"latin5":       charmap.ISO8859_9,
	"cp1254":       charmap.Windows1254,
	"windows-1254": charmap.Windows1254,
}

var errTooManyMalformed = errors.New("too many malformed rows")

func decodeCSV(data []byte, opts decodeOptions) (*table, error) {
	candidates := encodingChain
	if opts.encoding != "" {
		candidates = append([]string{strings.ToLower(opts.encoding)}, encodingChain...)
	}

	var errs []error
	for _, enc := range candidates {
		text, err := decodeText(data, enc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", enc, err))
			continue
		}
		t, err := parseDelimited(text, opts)
		if errors.Is(err, ErrEmptyFile) {
			return nil, err
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", enc, err))
			continue
		}
		t.encoding = enc
		return t, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrEncodingExhausted, errors.Join(errs...))
}

func decodeText(data []byte, enc string) (string, error) {
	switch enc {
	case "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8")
		}
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	case "utf-8-sig":
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8")
		}
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	e, ok := singleByte[enc]
	if !ok {
		return "", fmt.Errorf("unknown encoding %q", enc)
	}
	out, err := e.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func parseDelimited(text string, opts decodeOptions) (*table, error) {
	lines := strings.SplitAfter(text, "\n")
	if opts.skipRows > 0 {
		if opts.skipRows >= len(lines) {
			return nil, ErrEmptyFile
		}
		lines = lines[opts.skipRows:]
	}
	body := strings.Join(lines, "")

	comma := opts.delimiter
	if comma == 0 {
		comma = sniffDelimiter(body)
	}
	r := csv.NewReader(strings.NewReader(body))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{headers: trimAll(header), delimiter: comma}
	if isBlank(t.headers) {
		return nil, ErrEmptyFile
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			t.malformed++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) > len(t.headers) {
			t.malformed++
			continue
		}
		if isBlank(rec) {
			continue
		}
		t.rows = append(t.rows, padRow(rec, len(t.headers)))
	}
	if t.malformed > 0 && t.malformed > len(t.rows) {
		return nil, fmt.Errorf("%w: %d of %d", errTooManyMalformed, t.malformed, t.malformed+len(t.rows))
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of ';', tab and ',' on the first line.
func sniffDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	best, bestCount := ',', strings.Count(first, ",")
	for _, c := range []rune{';', '\t'} {
		if n := strings.Count(first, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func padRow(cells []string, n int) []any {
	row := make([]any, n)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
