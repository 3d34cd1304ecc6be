package domain

import "strings"

// Control flag prefixes appended by commission reconciliation.
const (
	FlagRateDiff       = "ORAN_FARK"
	FlagNoTableEntry   = "TABLO_YOK"
	FlagAmountDiff     = "TUTAR_FARK"
	FlagRateCalculated = "ORAN_HESAPLANDI"
)

const (
	StatusOK      = "✓ OK"
	StatusControl = "⚠ Kontrol"
)

// FlagSeparator joins control flags for display.
const FlagSeparator = " | "

// JoinFlags renders flags the way they are shown to operators.
func JoinFlags(flags []string) string {
	return strings.Join(flags, FlagSeparator)
}

// ControlSummary aggregates the commission control verdicts of a run.
type ControlSummary struct {
	TotalTransactions       int     `json:"total_transactions"`
	RateMatchedCount        int     `json:"rate_matched_count"`
	RateMismatchedCount     int     `json:"rate_mismatched_count"`
	AmountMatchedCount      int     `json:"amount_matched_count"`
	AmountMismatchedCount   int     `json:"amount_mismatched_count"`
	RateFromFileCount       int     `json:"rate_from_file_count"`
	RateCalculatedCount     int     `json:"rate_calculated_count"`
	FlaggedCount            int     `json:"flagged_count"`
	MatchPercentage         float64 `json:"match_percentage"`
	TotalCommissionActual   float64 `json:"total_commission_actual"`
	TotalCommissionExpected float64 `json:"total_commission_expected"`
	TotalCommissionDiff     float64 `json:"total_commission_diff"`
	AllOK                   bool    `json:"all_ok"`
	Status                  string  `json:"status"`
}
