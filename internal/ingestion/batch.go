package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/numeric"
)

// Batch is the typed, columnar form of a file after its bank transform.
// Every slice has Len entries.
type Batch struct {
	Len int

	TransactionDates []*time.Time
	SettlementDates  []*time.Time
	Types            []string
	TypesOriginal    []string
	Categories       []domain.Category
	IDs              []string
	CardBrands       []string
	Installments     []int

	Gross             []float64
	Commission        []float64
	Rates             []float64 // 0 means "not given"; finalize derives it
	RewardDeductions  []float64
	ServiceDeductions []float64

	// Set by finalize.
	RateSources          []domain.RateSource
	Net                  []float64
	CommissionCalculated []float64
	AmountDiff           []float64
	AmountDiffPct        []float64
	RateVerified         []bool
}

// baseBatch fills a batch from the frame with generic conversions. Bank
// transforms start from it and override what differs.
func baseBatch(f *Frame, bank *bankconfig.Bank) *Batch {
	layout := ""
	if bank != nil {
		layout = bank.DateLayout
	}
	b := &Batch{
		Len:               f.Len(),
		TransactionDates:  f.Dates(ColTransactionDate, layout),
		SettlementDates:   f.Dates(ColSettlementDate, layout),
		Types:             f.Strings(ColTransactionType),
		TypesOriginal:     make([]string, f.Len()),
		Categories:        fill(f.Len(), domain.CategoryPOS),
		IDs:               f.Strings(ColTransactionID),
		CardBrands:        f.Strings(ColCardBrand),
		Installments:      installments(f),
		Gross:             f.Floats(ColGrossAmount),
		Commission:        f.Floats(ColCommissionAmount),
		Rates:             f.Floats(ColCommissionRate),
		RewardDeductions:  f.Floats(ColRewardDeduction),
		ServiceDeductions: f.Floats(ColServiceDeduction),
	}
	return b
}

// installments parses installment_count; blanks and absent columns mean 1.
func installments(f *Frame) []int {
	out := fill(f.Len(), 1)
	for i, v := range f.Raw(ColInstallmentCount) {
		if n := int(math.Trunc(numeric.Parse(v))); n > 0 {
			out[i] = n
		}
	}
	return out
}

// splitInstallment reads the numerator of "3/3"-style values.
func splitInstallment(v any) int {
	s := cellString(v)
	if head, _, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			return 1
		}
		return n
	}
	if s == "" || strings.Trim(strings.ReplaceAll(s, ".", ""), "0123456789") != "" {
		return 1
	}
	return int(math.Trunc(numeric.Parse(v)))
}

func fill[T any](n int, v T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func scale(xs []float64, factor float64) {
	for i := range xs {
		xs[i] *= factor
	}
}

func abs(xs []float64) {
	for i := range xs {
		xs[i] = math.Abs(xs[i])
	}
}

// percentToDecimal divides values greater than 1 by 100.
func percentToDecimal(xs []float64) {
	for i, x := range xs {
		if x > 1 {
			xs[i] = x / 100
		}
	}
}

// deriveRates sets the rate of every row to |commission/gross| for exports
// that report amounts but no usable rate column. Zero gross stays 0.
func deriveRates(b *Batch) {
	b.Rates = make([]float64, b.Len)
	for i := range b.Rates {
		if b.Gross[i] != 0 {
			b.Rates[i] = numeric.Round(math.Abs(b.Commission[i]/b.Gross[i]), 6)
		}
	}
}

// toTransactions turns a finalized batch into rows.
func (b *Batch) toTransactions(bankID domain.BankID, bankName, source string) []domain.Transaction {
	out := make([]domain.Transaction, b.Len)
	for i := range out {
		t := &out[i]
		t.BankID = bankID
		t.BankName = bankName
		t.SourceFile = source
		t.TransactionID = b.IDs[i]
		t.TransactionDate = b.TransactionDates[i]
		t.SettlementDate = b.SettlementDates[i]
		t.TransactionType = b.Types[i]
		t.TransactionTypeOriginal = b.TypesOriginal[i]
		t.Category = b.Categories[i]
		t.CardBrand = b.CardBrands[i]
		t.InstallmentCount = b.Installments[i]
		t.GrossAmount = b.Gross[i]
		t.CommissionAmount = b.Commission[i]
		t.CommissionRate = b.Rates[i]
		t.RewardDeduction = b.RewardDeductions[i]
		t.ServiceDeduction = b.ServiceDeductions[i]
		t.RateSource = b.RateSources[i]
		t.NetAmount = b.Net[i]
		t.CommissionCalculated = b.CommissionCalculated[i]
		t.AmountDiff = b.AmountDiff[i]
		t.AmountDiffPct = b.AmountDiffPct[i]
		t.RateVerified = b.RateVerified[i]
	}
	return out
}
