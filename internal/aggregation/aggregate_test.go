package aggregation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashflow/posrecon/internal/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func tx(bank string, txType string, gross, commission float64) domain.Transaction {
	return domain.Transaction{
		BankName:         bank,
		TransactionType:  txType,
		InstallmentCount: 1,
		GrossAmount:      gross,
		CommissionAmount: commission,
		NetAmount:        gross - commission,
	}
}

func TestFilterSuccessful_KeepsRefunds(t *testing.T) {
	in := []domain.Transaction{
		tx("Akbank", "SATIS", 100, 2),
		tx("Akbank", "İADE", -50, -1),
		tx("Akbank", "SATIS", 200, 4),
		tx("Akbank", "IPTAL", 999, 0),
	}

	out := FilterSuccessful(in, DefaultExcludeTypes)

	require.Len(t, out, 3)
	assert.Equal(t, 250.0, Ground(out).GrossAmount)
	for _, r := range out {
		assert.NotEqual(t, 999.0, r.GrossAmount)
	}
}

func TestFilterSuccessful_Patterns(t *testing.T) {
	in := []domain.Transaction{
		tx("A", "Satış İptali", 1, 0),
		tx("A", "  başarısız işlem ", 1, 0),
		tx("A", "IADE", -1, 0),
		tx("A", "", 1, 0),
		tx("A", "Taksit", 1, 0),
	}

	out := FilterSuccessful(in, []string{"iptal", "BAŞARISIZ", " "})
	require.Len(t, out, 3)
	assert.Equal(t, "IADE", out[0].TransactionType)
	assert.Equal(t, "", out[1].TransactionType)
	assert.Equal(t, "Taksit", out[2].TransactionType)

	assert.Len(t, FilterSuccessful(in, nil), len(in))
}

func TestByBank(t *testing.T) {
	a := tx("Vakıfbank", "Taksit", 1000, 30)
	a.BankID = domain.BankVakifbank
	a.RateMatch = true
	a.CommissionExpected = 29
	b := tx("Vakıfbank", "İade", -200, -6)
	b.BankID = domain.BankVakifbank
	c := tx("Akbank", "Satış", 500, 0)
	c.BankID = domain.BankAkbank

	got := ByBank([]domain.Transaction{a, b, c})

	require.Len(t, got, 2)
	assert.Equal(t, "Akbank", got[0].BankName)
	assert.Equal(t, domain.BankAkbank, got[0].BankID)
	assert.Equal(t, 0.0, got[0].CommissionPct)

	v := got[1]
	assert.Equal(t, domain.BankVakifbank, v.BankID)
	assert.Equal(t, 2, v.TransactionCount)
	assert.Equal(t, 800.0, v.GrossAmount)
	assert.Equal(t, 24.0, v.CommissionAmount)
	assert.Equal(t, 776.0, v.NetAmount)
	assert.Equal(t, 29.0, v.CommissionExpected)
	assert.Equal(t, 1, v.MatchedCount)
	assert.Equal(t, 1, v.MismatchedCount)
	assert.Equal(t, 3.0, v.CommissionPct)
}

func TestByInstallment(t *testing.T) {
	rows := []domain.Transaction{tx("A", "", 100, 3), tx("A", "", 300, 30), tx("A", "", 50, 1)}
	rows[1].InstallmentCount = 12
	rows[2].InstallmentCount = 0

	got := ByInstallment(rows)

	require.Len(t, got, 2)
	assert.Equal(t, PesinBucket, got[0].Bucket)
	assert.Equal(t, 1, got[0].InstallmentCount)
	assert.Equal(t, 150.0, got[0].GrossAmount)
	assert.Equal(t, "12 Taksit", got[1].Bucket)
	assert.Equal(t, 10.0, got[1].CommissionPct)
}

func TestByPeriod(t *testing.T) {
	jan := tx("A", "", 100, 1)
	jan.TransactionDate = date(2026, time.January, 30)
	feb := tx("A", "", 100, 1)
	feb.TransactionDate = date(2026, time.January, 31)
	feb.SettlementDate = date(2026, time.February, 2)
	apr := tx("B", "", 10, 1)
	apr.TransactionDate = date(2026, time.April, 1)
	undated := tx("B", "", 5, 0)

	rows := []domain.Transaction{undated, apr, feb, jan}

	months := ByPeriod(rows, Month)
	require.Len(t, months, 4)
	assert.Equal(t, []string{"2026-01", "2026-02", "2026-04", UnknownPeriod},
		[]string{months[0].Period, months[1].Period, months[2].Period, months[3].Period})

	quarters := ByPeriod(rows, Quarter)
	require.Len(t, quarters, 3)
	assert.Equal(t, "2026-Q1", quarters[0].Period)
	assert.Equal(t, 2, quarters[0].TransactionCount)
	assert.Equal(t, "2026-Q2", quarters[1].Period)

	bp := ByBankAndPeriod(rows, Quarter)
	require.Len(t, bp, 3)
	assert.Equal(t, "A", bp[0].BankName)
	assert.Equal(t, "B", bp[1].BankName)
	assert.Equal(t, "2026-Q2", bp[1].Period)
	assert.Equal(t, UnknownPeriod, bp[2].Period)
}

func TestGround(t *testing.T) {
	rows := []domain.Transaction{tx("A", "", 0.1, 0.01), tx("A", "", 0.2, 0.02), tx("B", "", -0.3, -0.03)}
	rows[0].RateMatch = true

	g := Ground(rows)
	assert.Equal(t, 3, g.TransactionCount)
	assert.Equal(t, 0.0, g.GrossAmount)
	assert.Equal(t, 0.0, g.CommissionAmount)
	assert.Equal(t, 0.0, g.CommissionPct)
	assert.Equal(t, 33.33, g.MatchPercentage)

	empty := Ground(nil)
	assert.Zero(t, empty.TransactionCount)
	assert.Zero(t, empty.MatchPercentage)
}

func TestBuild_Idempotent(t *testing.T) {
	rows := []domain.Transaction{tx("Ziraat", "Satış", 1234.56, 36.42), tx("Akbank", "Satış", 10, 0.36)}
	rows[0].SettlementDate = date(2026, time.March, 3)

	first, err := json.Marshal(Build(rows, Month))
	require.NoError(t, err)
	second, err := json.Marshal(Build(rows, Month))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestParseGranularity(t *testing.T) {
	g, ok := ParseGranularity("quarter")
	assert.True(t, ok)
	assert.Equal(t, Quarter, g)
	_, ok = ParseGranularity("week")
	assert.False(t, ok)
	assert.Equal(t, UnknownPeriod, PeriodKey(nil, Month))
}
