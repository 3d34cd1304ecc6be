// Package aggregation groups reconciled settlement rows into bank,
// installment and period totals. Sums are exact; refunds reduce them through
// their negative amounts.
package aggregation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashflow/posrecon/internal/domain"
)

// Granularity selects how period keys are truncated.
type Granularity string

const (
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
)

// UnknownPeriod groups rows that carry no date at all.
const UnknownPeriod = "unknown"

// PesinBucket labels single-payment rows.
const PesinBucket = "Peşin"

// ParseGranularity accepts "month" or "quarter".
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case Month, Quarter:
		return Granularity(s), true
	}
	return "", false
}

// PeriodKey renders the period a date falls in, e.g. "2026-01" or "2026-Q1".
func PeriodKey(d *time.Time, g Granularity) string {
	if d == nil {
		return UnknownPeriod
	}
	if g == Quarter {
		return fmt.Sprintf("%04d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	}
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// InstallmentBucket labels an installment count.
func InstallmentBucket(n int) string {
	if n <= 1 {
		return PesinBucket
	}
	return fmt.Sprintf("%d Taksit", n)
}

type Totals struct {
	TransactionCount   int     `json:"transaction_count"`
	GrossAmount        float64 `json:"gross_amount"`
	CommissionAmount   float64 `json:"commission_amount"`
	NetAmount          float64 `json:"net_amount"`
	CommissionExpected float64 `json:"commission_expected"`
	CommissionDiff     float64 `json:"commission_diff"`
	MatchedCount       int     `json:"matched_count"`
	MismatchedCount    int     `json:"mismatched_count"`
	CommissionPct      float64 `json:"commission_pct"`
}

type BankSummary struct {
	BankID   domain.BankID `json:"bank_id"`
	BankName string        `json:"bank_name"`
	Totals
}

type InstallmentSummary struct {
	InstallmentCount int    `json:"installment_count"`
	Bucket           string `json:"bucket"`
	Totals
}

type PeriodSummary struct {
	Period string `json:"period"`
	Totals
}

type BankPeriodSummary struct {
	BankName string `json:"bank_name"`
	Period   string `json:"period"`
	Totals
}

// GroundTotals covers the whole row set.
type GroundTotals struct {
	Totals
	MatchPercentage float64 `json:"match_percentage"`
}

// Report bundles every grouping of one run.
type Report struct {
	Granularity  Granularity          `json:"granularity"`
	Ground       GroundTotals         `json:"ground_totals"`
	Banks        []BankSummary        `json:"banks"`
	Installments []InstallmentSummary `json:"installments"`
	Periods      []PeriodSummary      `json:"periods"`
	BankPeriods  []BankPeriodSummary  `json:"bank_periods"`
}

// Build computes every grouping over txns.
func Build(txns []domain.Transaction, g Granularity) Report {
	return Report{
		Granularity:  g,
		Ground:       Ground(txns),
		Banks:        ByBank(txns),
		Installments: ByInstallment(txns),
		Periods:      ByPeriod(txns, g),
		BankPeriods:  ByBankAndPeriod(txns, g),
	}
}

type accumulator struct {
	count, matched int
	gross          decimal.Decimal
	commission     decimal.Decimal
	net            decimal.Decimal
	expected       decimal.Decimal
	diff           decimal.Decimal
}

func (a *accumulator) add(t *domain.Transaction) {
	a.count++
	if t.RateMatch {
		a.matched++
	}
	a.gross = a.gross.Add(decimal.NewFromFloat(t.GrossAmount))
	a.commission = a.commission.Add(decimal.NewFromFloat(t.CommissionAmount))
	a.net = a.net.Add(decimal.NewFromFloat(t.NetAmount))
	a.expected = a.expected.Add(decimal.NewFromFloat(t.CommissionExpected))
	a.diff = a.diff.Add(decimal.NewFromFloat(t.CommissionDiff))
}

func (a *accumulator) totals() Totals {
	out := Totals{
		TransactionCount:   a.count,
		GrossAmount:        a.gross.Round(2).InexactFloat64(),
		CommissionAmount:   a.commission.Round(2).InexactFloat64(),
		NetAmount:          a.net.Round(2).InexactFloat64(),
		CommissionExpected: a.expected.Round(2).InexactFloat64(),
		CommissionDiff:     a.diff.Round(2).InexactFloat64(),
		MatchedCount:       a.matched,
		MismatchedCount:    a.count - a.matched,
	}
	if !a.gross.IsZero() {
		out.CommissionPct = a.commission.Div(a.gross).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
	}
	return out
}

// group accumulates rows under string keys and remembers the first row seen
// for each key.
type group struct {
	keys  []string
	accs  map[string]*accumulator
	first map[string]*domain.Transaction
}

func newGroup() *group {
	return &group{accs: map[string]*accumulator{}, first: map[string]*domain.Transaction{}}
}

func (g *group) add(key string, t *domain.Transaction) {
	a, ok := g.accs[key]
	if !ok {
		a = &accumulator{}
		g.accs[key] = a
		g.first[key] = t
		g.keys = append(g.keys, key)
	}
	a.add(t)
}

func (g *group) sorted() []string {
	keys := append([]string(nil), g.keys...)
	sort.Strings(keys)
	return keys
}

// ByBank groups rows by bank name, sorted by name.
func ByBank(txns []domain.Transaction) []BankSummary {
	g := newGroup()
	for i := range txns {
		g.add(txns[i].BankName, &txns[i])
	}
	out := make([]BankSummary, 0, len(g.keys))
	for _, k := range g.sorted() {
		out = append(out, BankSummary{BankID: g.first[k].BankID, BankName: k, Totals: g.accs[k].totals()})
	}
	return out
}

// ByInstallment groups rows by installment count, Peşin first.
func ByInstallment(txns []domain.Transaction) []InstallmentSummary {
	accs := map[int]*accumulator{}
	for i := range txns {
		n := txns[i].InstallmentCount
		if n < 1 {
			n = 1
		}
		a, ok := accs[n]
		if !ok {
			a = &accumulator{}
			accs[n] = a
		}
		a.add(&txns[i])
	}
	counts := make([]int, 0, len(accs))
	for n := range accs {
		counts = append(counts, n)
	}
	sort.Ints(counts)

	out := make([]InstallmentSummary, 0, len(counts))
	for _, n := range counts {
		out = append(out, InstallmentSummary{InstallmentCount: n, Bucket: InstallmentBucket(n), Totals: accs[n].totals()})
	}
	return out
}

// ByPeriod groups rows by the period of their settlement date, falling back
// to the transaction date. Undated rows land in UnknownPeriod, listed last.
func ByPeriod(txns []domain.Transaction, gr Granularity) []PeriodSummary {
	g := newGroup()
	for i := range txns {
		g.add(PeriodKey(txns[i].PeriodDate(), gr), &txns[i])
	}
	out := make([]PeriodSummary, 0, len(g.keys))
	for _, k := range g.sorted() {
		out = append(out, PeriodSummary{Period: k, Totals: g.accs[k].totals()})
	}
	return out
}

// ByBankAndPeriod groups rows by bank name and period.
func ByBankAndPeriod(txns []domain.Transaction, gr Granularity) []BankPeriodSummary {
	type key struct{ bank, period string }
	var keys []key
	accs := map[key]*accumulator{}
	for i := range txns {
		k := key{txns[i].BankName, PeriodKey(txns[i].PeriodDate(), gr)}
		a, ok := accs[k]
		if !ok {
			a = &accumulator{}
			accs[k] = a
			keys = append(keys, k)
		}
		a.add(&txns[i])
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bank != keys[j].bank {
			return keys[i].bank < keys[j].bank
		}
		return keys[i].period < keys[j].period
	})

	out := make([]BankPeriodSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, BankPeriodSummary{BankName: k.bank, Period: k.period, Totals: accs[k].totals()})
	}
	return out
}

// Ground sums the whole row set.
func Ground(txns []domain.Transaction) GroundTotals {
	var a accumulator
	for i := range txns {
		a.add(&txns[i])
	}
	out := GroundTotals{Totals: a.totals()}
	if a.count > 0 {
		out.MatchPercentage = decimal.NewFromInt(int64(a.matched)).
			Div(decimal.NewFromInt(int64(a.count))).
			Mul(decimal.NewFromInt(100)).
			Round(2).InexactFloat64()
	}
	return out
}
