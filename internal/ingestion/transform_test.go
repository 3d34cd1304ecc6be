package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/domain"
)

func normalize(t *testing.T, id domain.BankID, n int, cols map[string][]any) []domain.Transaction {
	t.Helper()
	bank, ok := bankconfig.Default().Get(id)
	require.True(t, ok)
	b := TransformerFor(id).Normalize(NewFrame(n, cols), bank)
	finalize(b)
	return b.toTransactions(id, bank.DisplayName, "test")
}

func assertNormalizedRows(t *testing.T, txns []domain.Transaction) {
	t.Helper()
	for i, tx := range txns {
		assert.InDelta(t, tx.GrossAmount-tx.CommissionAmount, tx.NetAmount, 1e-9, "row %d net", i)
		assert.GreaterOrEqual(t, tx.InstallmentCount, 1, "row %d installments", i)
		assert.LessOrEqual(t, tx.InstallmentCount, MaxInstallments, "row %d installments", i)
		assert.GreaterOrEqual(t, tx.CommissionRate, 0.0, "row %d rate", i)
		assert.LessOrEqual(t, tx.CommissionRate, 1.0, "row %d rate", i)
		assert.NotEmpty(t, tx.Category, "row %d category", i)
	}
}

func TestZiraat(t *testing.T) {
	txns := normalize(t, domain.BankZiraat, 3, map[string][]any{
		ColTransactionType:  {"Çok Taksitli Satış", "E-commers Std", "Ecommerce Satıs Iade"},
		ColGrossAmount:      {1000.0, 500.0, -500.0},
		ColCommissionRate:   {6.80, 2.95, 2.95},
		ColCommissionAmount: {68.0, 14.75, -14.75},
		ColInstallmentCount: {3.0, "", 0.0},
		ColNetAmount:        {1.0, 1.0, 1.0},
	})
	require.Len(t, txns, 3)

	assert.InDelta(t, 0.068, txns[0].CommissionRate, 1e-12)
	assert.Equal(t, domain.RateFromFile, txns[0].RateSource)
	assert.Equal(t, 3, txns[0].InstallmentCount)
	assert.Equal(t, 1, txns[1].InstallmentCount)
	assert.Equal(t, 1, txns[2].InstallmentCount)
	assert.Equal(t, domain.CategoryPOS, txns[0].Category)
	assert.Equal(t, domain.CategoryRefund, txns[2].Category)
	assert.InDelta(t, 932.0, txns[0].NetAmount, 1e-9)
	assertNormalizedRows(t, txns)
}

func TestAkbank_UsesAlternateCommission(t *testing.T) {
	txns := normalize(t, domain.BankAkbank, 2, map[string][]any{
		ColGrossAmount:      {1000.0, 0.0},
		ColCommissionAmount: {0.0, 0.0},
		ColCommissionAlt:    {36.0, 0.0},
		ColCommissionRate:   {9.99, 9.99},
		ColInstallmentCount: {0.0, 2.0},
	})

	assert.Equal(t, 36.0, txns[0].CommissionAmount)
	assert.InDelta(t, 0.036, txns[0].CommissionRate, 1e-12)
	assert.Equal(t, domain.RateFromFile, txns[0].RateSource)
	assert.True(t, txns[0].RateVerified)
	assert.Equal(t, 1, txns[0].InstallmentCount)

	assert.Equal(t, 0.0, txns[1].CommissionRate)
	assert.Equal(t, domain.RateZeroGross, txns[1].RateSource)
	assert.Equal(t, 2, txns[1].InstallmentCount)
	assertNormalizedRows(t, txns)
}

func TestGaranti(t *testing.T) {
	txns := normalize(t, domain.BankGaranti, 3, map[string][]any{
		ColTransactionDate:  {"15.01.2026", "16.01.2026", "bad"},
		ColSettlementDate:   {"17.01.2026", "", ""},
		ColTransactionType:  {"SATIS", "pnlt", "PUCRT"},
		ColGrossAmount:      {"1.234,50", "-50,00", "0"},
		ColCommissionAmount: {"43,21", "0", "12,50"},
		ColNetAmount:        {"999.999,99", "0", "0"},
		ColRewardDeduction:  {"0", "-50,00", "0"},
		ColServiceDeduction: {"1,25", "0", "0"},
	})
	require.Len(t, txns, 3)

	assert.InDelta(t, 1234.50, txns[0].GrossAmount, 1e-9)
	assert.InDelta(t, 1191.29, txns[0].NetAmount, 1e-9)
	assert.InDelta(t, 1.25, txns[0].ServiceDeduction, 1e-9)
	assert.InDelta(t, 0.035002, txns[0].CommissionRate, 1e-12)
	assert.Equal(t, domain.RateFromFile, txns[0].RateSource)
	assert.True(t, txns[0].RateVerified)
	assert.InDelta(t, -50.0, txns[1].RewardDeduction, 1e-9)
	require.NotNil(t, txns[0].TransactionDate)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *txns[0].TransactionDate)
	assert.Equal(t, time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC), *txns[0].PeriodDate())
	assert.Nil(t, txns[2].TransactionDate)

	assert.Equal(t, domain.CategoryPOS, txns[0].Category)
	assert.Equal(t, domain.CategoryPenalty, txns[1].Category)
	assert.Equal(t, domain.CategoryService, txns[2].Category)
	assert.Equal(t, domain.RateZeroGross, txns[2].RateSource)
	assertNormalizedRows(t, txns)
}

func TestHalkbank_InstallmentsFromType(t *testing.T) {
	txns := normalize(t, domain.BankHalkbank, 3, map[string][]any{
		ColTransactionType:  {"Peşin", "Taksitli", "TEK"},
		ColGrossAmount:      {100.0, 100.0, 100.0},
		ColCommissionRate:   {3.10, 24.08, 3.10},
		ColCommissionAmount: {3.10, 24.08, 3.10},
	})
	assert.Equal(t, []int{1, 2, 1}, []int{txns[0].InstallmentCount, txns[1].InstallmentCount, txns[2].InstallmentCount})
	assert.InDelta(t, 0.2408, txns[1].CommissionRate, 1e-12)
	assertNormalizedRows(t, txns)
}

func TestQNB_AbsoluteAmounts(t *testing.T) {
	txns := normalize(t, domain.BankQNB, 2, map[string][]any{
		ColTransactionType:  {"Taksitsiz", "İade Taksitli"},
		ColGrossAmount:      {250.0, -250.0},
		ColCommissionAmount: {8.475, -8.475},
		ColCommissionRate:   {3.39, 0.0339},
	})
	for _, tx := range txns {
		assert.Equal(t, 250.0, tx.GrossAmount)
		assert.Equal(t, 8.475, tx.CommissionAmount)
		assert.InDelta(t, 0.0339, tx.CommissionRate, 1e-12)
	}
	assert.Equal(t, 1, txns[0].InstallmentCount)
	assert.Equal(t, 2, txns[1].InstallmentCount)
	assertNormalizedRows(t, txns)
}

func TestVakifbank_FixedWidthAndTypeMap(t *testing.T) {
	txns := normalize(t, domain.BankVakifbank, 2, map[string][]any{
		ColTransactionDate:  {"15/01/2026", "16/01/2026"},
		ColTransactionType:  {"TKS", "XYZ"},
		ColGrossAmount:      {"+00000000000005038.80", "-00000000000000100.00"},
		ColCommissionRate:   {"23,95", "3.36"},
		ColCommissionAmount: {"+00000000000001206.80", "-00000000000000003.36"},
		ColNetAmount:        {"+00000000000000000.00", "+00000000000000000.00"},
		ColInstallmentCount: {"12", "0"},
	})

	assert.Equal(t, 5038.80, txns[0].GrossAmount)
	assert.InDelta(t, 3832.00, txns[0].NetAmount, 1e-9)
	assert.InDelta(t, 0.2395, txns[0].CommissionRate, 1e-12)
	assert.Equal(t, "Taksit", txns[0].TransactionType)
	assert.Equal(t, "TKS", txns[0].TransactionTypeOriginal)
	assert.Equal(t, "XYZ", txns[1].TransactionType)
	assert.Equal(t, 12, txns[0].InstallmentCount)
	assert.Equal(t, 1, txns[1].InstallmentCount)
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), *txns[1].TransactionDate)
	assertNormalizedRows(t, txns)
}

func TestYKB_RefundAndInstallments(t *testing.T) {
	txns := normalize(t, domain.BankYKB, 3, map[string][]any{
		ColMessageType:        {"Satış", "İade", "Satış"},
		ColGrossAmount:        {1000.0, 300.0, 50.0},
		ColCommissionTaksitli: {50.0, 12.0, 0.0},
		ColContributionFee:    {5.0, 3.0, 1.75},
		ColInstallmentCount:   {"3/3", 6.0, "abc"},
	})

	assert.Equal(t, 55.0, txns[0].CommissionAmount)
	assert.Equal(t, 945.0, txns[0].NetAmount)
	assert.InDelta(t, 0.055, txns[0].CommissionRate, 1e-12)
	assert.Equal(t, domain.RateFromFile, txns[0].RateSource)
	assert.Equal(t, 3, txns[0].InstallmentCount)

	assert.Equal(t, -300.0, txns[1].GrossAmount)
	assert.Equal(t, -15.0, txns[1].CommissionAmount)
	assert.Equal(t, -285.0, txns[1].NetAmount)
	assert.InDelta(t, 0.05, txns[1].CommissionRate, 1e-12)
	assert.Equal(t, domain.CategoryRefund, txns[1].Category)
	assert.Equal(t, 6, txns[1].InstallmentCount)

	assert.Equal(t, 1, txns[2].InstallmentCount)
	assert.Equal(t, domain.CategoryPOS, txns[2].Category)
	assertNormalizedRows(t, txns)
}

func TestYKB_TypeFallbackCategory(t *testing.T) {
	txns := normalize(t, domain.BankYKB, 2, map[string][]any{
		ColTransactionType: {"Satış", "Satış İade"},
		ColGrossAmount:     {10.0, 10.0},
	})
	assert.Equal(t, domain.CategoryPOS, txns[0].Category)
	assert.Equal(t, domain.CategoryRefund, txns[1].Category)
	assert.Equal(t, 1, txns[1].InstallmentCount)
}

func TestFinalize_RateAndAmountColumns(t *testing.T) {
	b := &Batch{
		Len:          3,
		Gross:        []float64{1000, 1000, -100},
		Commission:   []float64{30, 35, -3},
		Rates:        []float64{3, 0, 0.03},
		Installments: []int{0, 24, 2},
		Categories:   make([]domain.Category, 3),
	}
	finalize(b)

	assert.InDelta(t, 0.03, b.Rates[0], 1e-12)
	assert.Equal(t, domain.RateFromFile, b.RateSources[0])
	assert.True(t, b.RateVerified[0])

	assert.InDelta(t, 0.035, b.Rates[1], 1e-12)
	assert.Equal(t, domain.RateCalculated, b.RateSources[1])

	// negative commission uses its magnitude as the deviation base
	assert.InDelta(t, 0.0, b.AmountDiffPct[2], 1e-9)
	assert.True(t, b.RateVerified[2])

	assert.Equal(t, []int{1, 12, 2}, b.Installments)
	assert.Equal(t, domain.CategoryPOS, b.Categories[0])
}

func TestFinalize_AmountDeviation(t *testing.T) {
	b := &Batch{
		Len:          1,
		Gross:        []float64{1000},
		Commission:   []float64{40},
		Rates:        []float64{0.03},
		Installments: []int{1},
		Categories:   []domain.Category{domain.CategoryPOS},
	}
	finalize(b)
	assert.InDelta(t, 30.0, b.CommissionCalculated[0], 1e-9)
	assert.InDelta(t, 10.0, b.AmountDiff[0], 1e-9)
	assert.InDelta(t, 25.0, b.AmountDiffPct[0], 1e-9)
	assert.False(t, b.RateVerified[0])
}

func TestSplitInstallment(t *testing.T) {
	assert.Equal(t, 3, splitInstallment("3/3"))
	assert.Equal(t, 2, splitInstallment(" 2 / 6 "))
	assert.Equal(t, 4, splitInstallment(4.0))
	assert.Equal(t, 4, splitInstallment("4.0"))
	assert.Equal(t, 1, splitInstallment("x/3"))
	assert.Equal(t, 1, splitInstallment(""))
	assert.Equal(t, 0, splitInstallment("0"))
}
