package reconciliation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/numeric"
	"github.com/cashflow/posrecon/internal/ratetable"
)

// AmountTolerancePct is the relative deviation, in percent, between the
// reported commission and gross × rate at which a row fails the amount check.
const AmountTolerancePct = 1.0

const (
	summaryAllOK      = "✓ Tüm kontroller OK"
	summaryNeedsCheck = "⚠ %d işlemde kontrol gerekli"
)

// Service checks settlement rows against the contractual rate table.
type Service struct {
	rates       *ratetable.Snapshot
	defaultBank string
	log         zerolog.Logger
}

// NewService creates a reconciliation service bound to one rate snapshot.
// defaultBank names the bank assumed for rows whose bank is unknown.
func NewService(rates *ratetable.Snapshot, defaultBank string, log zerolog.Logger) *Service {
	return &Service{rates: rates, defaultBank: defaultBank, log: log}
}

// Reconcile checks every row and returns the checked copies. The input
// slice is left untouched.
func (s *Service) Reconcile(txns []domain.Transaction) []domain.Transaction {
	out := Reconcile(txns, s.rates, s.defaultBank)

	var noTable, rateDiff, amountDiff int
	for i := range out {
		if !out[i].RateMatch {
			if out[i].RateExpected == 0 {
				noTable++
			} else {
				rateDiff++
			}
		}
		if !out[i].AmountMatch {
			amountDiff++
		}
	}
	s.log.Info().
		Int("rows", len(out)).
		Int("rate_mismatch", rateDiff).
		Int("no_table", noTable).
		Int("amount_mismatch", amountDiff).
		Str("rate_version", s.rates.Info().Version).
		Msg("commission control complete")
	return out
}

// Reconcile is the stateless form of Service.Reconcile.
func Reconcile(txns []domain.Transaction, rates *ratetable.Snapshot, defaultBank string) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	for i := range txns {
		out[i] = Check(txns[i], rates, defaultBank)
	}
	return out
}

// Check runs the contractual rate check and the internal amount check on
// one row.
func Check(t domain.Transaction, rates *ratetable.Snapshot, defaultBank string) domain.Transaction {
	flags := make([]string, 0, 3)

	bankName := t.BankName
	if t.BankID == domain.BankUnknown && bankName == "" {
		bankName = defaultBank
	}

	rate := t.CommissionRate
	if rate > 1 {
		rate /= 100
	}
	t.CommissionRate = rate

	expected, found := rates.Lookup(t.BankID, bankName, t.InstallmentCount)
	if found {
		t.RateExpected = expected
		t.CommissionExpected = numeric.Round(t.GrossAmount*expected, 2)
		diff := math.Abs(rate - expected)
		t.RateDiff = numeric.Round(diff, 6)
		t.RateMatch = diff < rates.Threshold()
		if t.RateMatch {
			t.CommissionDiff = 0
		} else {
			t.CommissionDiff = numeric.Round(t.CommissionAmount-t.CommissionExpected, 2)
			flags = append(flags, fmt.Sprintf("%s:%.2f%%", domain.FlagRateDiff, diff*100))
		}
	} else {
		t.RateExpected = 0
		t.CommissionExpected = 0
		t.RateDiff = 0
		t.CommissionDiff = 0
		t.RateMatch = false
		flags = append(flags, domain.FlagNoTableEntry)
	}

	t.AmountMatch = true
	if t.GrossAmount != 0 && rate != 0 {
		calc := t.GrossAmount * rate
		diff := math.Abs(t.CommissionAmount - calc)
		var pct float64
		if t.CommissionAmount != 0 {
			pct = diff / math.Abs(t.CommissionAmount) * 100
		}
		if pct >= AmountTolerancePct {
			t.AmountMatch = false
			flags = append(flags, fmt.Sprintf("%s:%.2fTL(%.1f%%)", domain.FlagAmountDiff, diff, pct))
		}
	}

	if t.RateSource == domain.RateCalculated {
		flags = append(flags, domain.FlagRateCalculated)
	}

	t.ControlFlags = flags
	if len(flags) == 0 {
		t.ControlStatus = domain.StatusOK
	} else {
		t.ControlStatus = domain.StatusControl
	}
	return t
}

// Summarize counts control verdicts over reconciled rows. Commission totals
// are summed exactly and rounded to kuruş.
func Summarize(txns []domain.Transaction) domain.ControlSummary {
	var s domain.ControlSummary
	actual, expected := decimal.Zero, decimal.Zero

	s.TotalTransactions = len(txns)
	for i := range txns {
		t := &txns[i]
		if t.RateMatch {
			s.RateMatchedCount++
		}
		if t.AmountMatch {
			s.AmountMatchedCount++
		}
		switch t.RateSource {
		case domain.RateFromFile:
			s.RateFromFileCount++
		case domain.RateCalculated:
			s.RateCalculatedCount++
		}
		if t.Flagged() {
			s.FlaggedCount++
		}
		actual = actual.Add(decimal.NewFromFloat(t.CommissionAmount))
		expected = expected.Add(decimal.NewFromFloat(t.CommissionExpected))
	}
	s.RateMismatchedCount = s.TotalTransactions - s.RateMatchedCount
	s.AmountMismatchedCount = s.TotalTransactions - s.AmountMatchedCount

	if s.TotalTransactions > 0 {
		s.MatchPercentage = numeric.Round(float64(s.RateMatchedCount)/float64(s.TotalTransactions)*100, 2)
	}
	s.TotalCommissionActual = actual.Round(2).InexactFloat64()
	s.TotalCommissionExpected = expected.Round(2).InexactFloat64()
	s.TotalCommissionDiff = actual.Sub(expected).Round(2).InexactFloat64()

	s.AllOK = s.RateMismatchedCount == 0 && s.AmountMismatchedCount == 0
	if s.AllOK {
		s.Status = summaryAllOK
	} else {
		s.Status = fmt.Sprintf(summaryNeedsCheck, s.FlaggedCount)
	}
	return s
}
