package ingestion

import (
	"math"

	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/numeric"
)

const (
	// MaxInstallments is the largest installment bucket.
	MaxInstallments = 12

	// amountTolerancePct is the relative deviation (in percent) below which a
	// row's own rate and amount are considered consistent.
	amountTolerancePct = 1.0
)

// finalize applies the rules shared by every bank after its transform:
// commission rate provenance, net recomputation, the rate/amount consistency
// columns, installment range and category defaults.
func finalize(b *Batch) {
	n := b.Len
	b.RateSources = make([]domain.RateSource, n)
	b.Net = make([]float64, n)
	b.CommissionCalculated = make([]float64, n)
	b.AmountDiff = make([]float64, n)
	b.AmountDiffPct = make([]float64, n)
	b.RateVerified = make([]bool, n)

	for i := 0; i < n; i++ {
		g, c, rate := b.Gross[i], b.Commission[i], b.Rates[i]

		switch {
		case rate != 0:
			if rate > 1 {
				rate /= 100
			}
			b.RateSources[i] = domain.RateFromFile
		case g != 0:
			rate = numeric.Round(math.Abs(c/g), 6)
			b.RateSources[i] = domain.RateCalculated
		default:
			rate = 0
			b.RateSources[i] = domain.RateZeroGross
		}
		b.Rates[i] = rate

		b.Net[i] = g - c

		calc := g * rate
		diff := c - calc
		pct := 0.0
		if c != 0 {
			pct = math.Abs(diff) / math.Abs(c) * 100
		}
		b.CommissionCalculated[i] = calc
		b.AmountDiff[i] = diff
		b.AmountDiffPct[i] = pct
		b.RateVerified[i] = pct < amountTolerancePct

		switch {
		case b.Installments[i] < 1:
			b.Installments[i] = 1
		case b.Installments[i] > MaxInstallments:
			b.Installments[i] = MaxInstallments
		}
		if b.Categories[i] == "" {
			b.Categories[i] = domain.CategoryPOS
		}
	}
}
