package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/numeric"
)

// Standard column names produced by column mapping.
const (
	ColTransactionDate  = "transaction_date"
	ColSettlementDate   = "settlement_date"
	ColTransactionType  = "transaction_type"
	ColTransactionID    = "transaction_id"
	ColCardBrand        = "card_brand"
	ColGrossAmount      = "gross_amount"
	ColCommissionRate   = "commission_rate"
	ColCommissionAmount = "commission_amount"
	ColNetAmount        = "net_amount"
	ColInstallmentCount = "installment_count"
	ColRewardDeduction  = "reward_deduction"
	ColServiceDeduction = "service_deduction"

	// Bank-specific auxiliary columns consumed by transforms.
	ColCommissionAlt      = "commission_amount_alt"
	ColCommissionTaksitli = "commission_taksitli"
	ColContributionFee    = "katki_payi_tl"
	ColMessageType        = "mesaj_tipi"
)

// StandardColumns are the canonical columns an unidentified file may carry
// under their own names.
var StandardColumns = []string{
	ColTransactionDate, ColSettlementDate, ColTransactionType, ColTransactionID,
	ColCardBrand, ColGrossAmount, ColCommissionRate, ColCommissionAmount,
	ColNetAmount, ColInstallmentCount, ColRewardDeduction, ColServiceDeduction,
}

// Frame holds the mapped columns of one file, addressed by standard name.
// Columns that were not present in the source are absent, not empty.
type Frame struct {
	n    int
	cols map[string][]any
}

// NewFrame builds a frame from named columns. All columns must have n cells.
func NewFrame(n int, cols map[string][]any) *Frame {
	if cols == nil {
		cols = map[string][]any{}
	}
	return &Frame{n: n, cols: cols}
}

func (f *Frame) Len() int { return f.n }

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Columns returns the standard column names present in the frame.
func (f *Frame) Columns() []string {
	out := make([]string, 0, len(f.cols))
	for _, c := range StandardColumns {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Floats parses a column with the locale numeric parser. Absent columns
// yield zeros.
func (f *Frame) Floats(name string) []float64 {
	out := make([]float64, f.n)
	for i, v := range f.cols[name] {
		out[i] = numeric.Parse(v)
	}
	return out
}

// Strings returns a column as trimmed text. Absent columns yield "".
func (f *Frame) Strings(name string) []string {
	out := make([]string, f.n)
	for i, v := range f.cols[name] {
		out[i] = cellString(v)
	}
	return out
}

// Dates parses a column as dates, trying layout first.
func (f *Frame) Dates(name, layout string) []*time.Time {
	out := make([]*time.Time, f.n)
	for i, v := range f.cols[name] {
		out[i] = ParseDate(v, layout)
	}
	return out
}

// Raw returns the cells of a column, or nil.
func (f *Frame) Raw(name string) []any {
	return f.cols[name]
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// mapColumns resolves the bank's raw->standard dictionary against the file
// headers. It returns the header index for each standard column.
func mapColumns(headers []string, bank *bankconfig.Bank) map[string]int {
	byNorm := make(map[string][]int)
	for i, h := range headers {
		n := colname.Normalize(h)
		if n == "" {
			continue
		}
		byNorm[n] = append(byNorm[n], i)
	}

	mapping := make(map[string]int)
	if bank == nil {
		for _, std := range StandardColumns {
			if idx, ok := byNorm[colname.Normalize(std)]; ok {
				mapping[std] = idx[0]
			}
		}
		return mapping
	}

	for _, raw := range bank.RawNames() {
		std := bank.RawColumns[raw]
		if _, done := mapping[std]; done {
			continue
		}
		candidates := byNorm[colname.Normalize(raw)]
		if len(candidates) == 0 {
			continue
		}
		pick := candidates[0]
		for _, c := range candidates {
			if strings.EqualFold(headers[c], strings.TrimSpace(raw)) {
				pick = c
				break
			}
		}
		mapping[std] = pick
	}
	return mapping
}

func buildFrame(t *table, mapping map[string]int) *Frame {
	cols := make(map[string][]any, len(mapping))
	for std, idx := range mapping {
		col := make([]any, len(t.rows))
		for i, row := range t.rows {
			if idx < len(row) {
				col[i] = row[idx]
			}
		}
		cols[std] = col
	}
	return NewFrame(len(t.rows), cols)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02.01.2006",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006",
	"2.1.2006",
	"2/1/2006",
	"20060102",
}

// ParseDate converts a cell into a date. Numbers are Excel serial dates;
// strings are tried against layout and then day-first layouts. Unparseable
// cells yield nil.
func ParseDate(v any, layout string) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if x <= 0 {
			return nil
		}
		t, err := excelize.ExcelDateToTime(x, false)
		if err != nil {
			return nil
		}
		return &t
	case time.Time:
		return &x
	}

	s := cellString(v)
	if s == "" {
		return nil
	}
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return &t
		}
	}
	return nil
}
