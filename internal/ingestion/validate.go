package ingestion

import (
	"sort"

	"github.com/cashflow/posrecon/internal/bankconfig"
)

// requiredColumns must be present for a known bank, where the bank maps them.
var requiredColumns = map[string]bool{
	ColTransactionDate:  true,
	ColGrossAmount:      true,
	ColCommissionAmount: true,
	ColNetAmount:        true,
	ColInstallmentCount: true,
}

// ColumnValidation is the advisory result of ValidateColumns.
type ColumnValidation struct {
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
	Valid    bool     `json:"valid"`
}

// RequiredColumns returns the required standard columns the bank maps.
func RequiredColumns(bank *bankconfig.Bank) []string {
	var out []string
	for _, std := range bank.StandardColumns() {
		if requiredColumns[std] {
			out = append(out, std)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateColumns lists the required columns absent from a mapped frame.
// It never fails the read.
func ValidateColumns(bank *bankconfig.Bank, f *Frame) ColumnValidation {
	v := ColumnValidation{Required: RequiredColumns(bank)}
	for _, c := range v.Required {
		if !f.Has(c) {
			v.Missing = append(v.Missing, c)
		}
	}
	v.Valid = len(v.Missing) == 0
	return v
}
