package domain

import "time"

// BankID identifies one of the supported acquiring banks.
type BankID string

const (
	BankUnknown   BankID = ""
	BankZiraat    BankID = "ziraat"
	BankAkbank    BankID = "akbank"
	BankGaranti   BankID = "garanti"
	BankHalkbank  BankID = "halkbank"
	BankQNB       BankID = "qnb"
	BankVakifbank BankID = "vakifbank"
	BankYKB       BankID = "ykb"
	BankIsbank    BankID = "isbankasi"
)

// KnownBanks lists every supported bank in a stable order.
var KnownBanks = []BankID{
	BankAkbank, BankGaranti, BankHalkbank, BankIsbank,
	BankQNB, BankVakifbank, BankYKB, BankZiraat,
}

// Valid reports whether b is one of the known banks.
func (b BankID) Valid() bool {
	for _, k := range KnownBanks {
		if b == k {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryPOS     Category = "POS İşlemi"
	CategoryRefund  Category = "İade"
	CategoryPenalty Category = "Ceza/Ödül İadesi"
	CategoryService Category = "Hizmet Ücreti"
)

// RateSource records where commission_rate came from.
type RateSource string

const (
	RateFromFile   RateSource = "file"
	RateCalculated RateSource = "calculated"
	RateZeroGross  RateSource = "zero_gross"
)

// Transaction is one normalized settlement line.
//
// NetAmount is always GrossAmount - CommissionAmount. InstallmentCount is in
// 1..12, with 1 meaning a single payment (Peşin).
type Transaction struct {
	BankID     BankID `json:"bank_id"`
	BankName   string `json:"bank_name"`
	SourceFile string `json:"source_file"`

	TransactionID   string     `json:"transaction_id,omitempty"`
	TransactionDate *time.Time `json:"transaction_date,omitempty"`
	SettlementDate  *time.Time `json:"settlement_date,omitempty"`

	TransactionType         string   `json:"transaction_type,omitempty"`
	TransactionTypeOriginal string   `json:"transaction_type_original,omitempty"`
	Category                Category `json:"transaction_category"`
	CardBrand               string   `json:"card_brand,omitempty"`
	InstallmentCount        int      `json:"installment_count"`

	GrossAmount      float64    `json:"gross_amount"`
	CommissionRate   float64    `json:"commission_rate"`
	CommissionAmount float64    `json:"commission_amount"`
	NetAmount        float64    `json:"net_amount"`
	RateSource       RateSource `json:"rate_source"`

	RewardDeduction  float64 `json:"reward_deduction,omitempty"`
	ServiceDeduction float64 `json:"service_deduction,omitempty"`

	// Internal consistency of the file's own rate and amount.
	CommissionCalculated float64 `json:"commission_calculated"`
	AmountDiff           float64 `json:"amount_diff"`
	AmountDiffPct        float64 `json:"amount_diff_pct"`
	RateVerified         bool    `json:"rate_verified"`

	// Filled by reconciliation.
	RateExpected       float64  `json:"rate_expected"`
	CommissionExpected float64  `json:"commission_expected"`
	RateDiff           float64  `json:"rate_diff"`
	CommissionDiff     float64  `json:"commission_diff"`
	RateMatch          bool     `json:"rate_match"`
	AmountMatch        bool     `json:"amount_match"`
	ControlFlags       []string `json:"control_flags"`
	ControlStatus      string   `json:"control_status"`
}

// PeriodDate returns the date that decides which period the row belongs to:
// the settlement date when known, otherwise the transaction date.
func (t *Transaction) PeriodDate() *time.Time {
	if t.SettlementDate != nil {
		return t.SettlementDate
	}
	return t.TransactionDate
}

// Flagged reports whether reconciliation raised any control flag.
func (t *Transaction) Flagged() bool {
	return len(t.ControlFlags) > 0
}
