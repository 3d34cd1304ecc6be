package aggregation

import (
	"strings"

	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/domain"
)

// DefaultExcludeTypes are the cancellation and failure markers dropped
// before reconciliation.
var DefaultExcludeTypes = []string{"İPTAL", "IPTAL", "BAŞARISIZ"}

// FilterSuccessful drops rows whose transaction type contains any of the
// exclude patterns, ignoring case and Turkish diacritics. Refund rows are
// kept: their negative amounts offset the original sales in every sum.
func FilterSuccessful(txns []domain.Transaction, exclude []string) []domain.Transaction {
	patterns := make([]string, 0, len(exclude))
	for _, p := range exclude {
		if p = colname.Fold(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}

	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		if !excluded(t.TransactionType, patterns) {
			out = append(out, t)
		}
	}
	return out
}

func excluded(txType string, patterns []string) bool {
	folded := colname.Fold(strings.TrimSpace(txType))
	if folded == "" {
		return false
	}
	for _, p := range patterns {
		if strings.Contains(folded, p) {
			return true
		}
	}
	return false
}
