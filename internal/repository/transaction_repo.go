package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cashflow/posrecon/internal/domain"
)

const transactionColumns = `bank_id, bank_name, source_file, transaction_id, transaction_date,
	settlement_date, transaction_type, transaction_type_original, category, card_brand,
	installment_count, gross_amount, commission_rate, commission_amount, net_amount,
	rate_source, reward_deduction, service_deduction, commission_calculated, amount_diff,
	amount_diff_pct, rate_verified, rate_expected, commission_expected, rate_diff,
	commission_diff, rate_match, amount_match, control_flags, control_status`

type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func insertTransactions(tx *sql.Tx, runID string, txns []domain.Transaction) error {
	stmt, err := tx.Prepare(
		`INSERT INTO transactions (run_id, row_no, ` + transactionColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare transactions: %w", err)
	}
	defer stmt.Close()

	for i := range txns {
		t := &txns[i]
		_, err := stmt.Exec(
			runID, i, string(t.BankID), t.BankName, t.SourceFile, t.TransactionID,
			formatNullableTime(t.TransactionDate), formatNullableTime(t.SettlementDate),
			t.TransactionType, t.TransactionTypeOriginal, string(t.Category), t.CardBrand,
			t.InstallmentCount, t.GrossAmount, t.CommissionRate, t.CommissionAmount, t.NetAmount,
			string(t.RateSource), t.RewardDeduction, t.ServiceDeduction, t.CommissionCalculated,
			t.AmountDiff, t.AmountDiffPct, t.RateVerified, t.RateExpected, t.CommissionExpected,
			t.RateDiff, t.CommissionDiff, t.RateMatch, t.AmountMatch,
			domain.JoinFlags(t.ControlFlags), t.ControlStatus,
		)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return nil
}

func (r *TransactionRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

type TransactionFilter struct {
	BankID   string
	Category string
	Flagged  *bool
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// List returns one page of stored rows in ingestion order, plus the number
// of rows matching the filter.
func (r *TransactionRepo) List(f TransactionFilter) ([]domain.Transaction, int, error) {
	where, args := buildTransactionWhere(f)

	var total int
	countSQL := "SELECT COUNT(*) FROM transactions" + where
	if err := r.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	querySQL := "SELECT " + transactionColumns + " FROM transactions" + where + " ORDER BY row_no LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *t)
	}
	return txns, total, rows.Err()
}

// BankControlStat counts control outcomes for one bank.
type BankControlStat struct {
	BankName         string  `json:"bank_name"`
	Total            int     `json:"total"`
	Flagged          int     `json:"flagged"`
	RateMismatches   int     `json:"rate_mismatches"`
	AmountMismatches int     `json:"amount_mismatches"`
	CommissionDiff   float64 `json:"commission_diff"`
}

func (r *TransactionRepo) GetControlStatsByBank() ([]BankControlStat, error) {
	rows, err := r.db.Query(`
		SELECT bank_name,
			COUNT(*),
			COALESCE(SUM(CASE WHEN control_flags != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rate_match = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount_match = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(commission_diff), 0)
		FROM transactions GROUP BY bank_name ORDER BY bank_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []BankControlStat{}
	for rows.Next() {
		var s BankControlStat
		if err := rows.Scan(&s.BankName, &s.Total, &s.Flagged, &s.RateMismatches,
			&s.AmountMismatches, &s.CommissionDiff); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// --- helpers ---

func buildTransactionWhere(f TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.BankID != "" {
		clauses = append(clauses, "bank_id = ?")
		args = append(args, f.BankID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.Flagged != nil {
		if *f.Flagged {
			clauses = append(clauses, "control_flags != ''")
		} else {
			clauses = append(clauses, "control_flags = ''")
		}
	}
	if f.From != nil {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func scanTransaction(rows *sql.Rows) (*domain.Transaction, error) {
	var t domain.Transaction
	var bankID, category, rateSource, flags string
	var txDate, settleDate sql.NullString

	err := rows.Scan(
		&bankID, &t.BankName, &t.SourceFile, &t.TransactionID, &txDate,
		&settleDate, &t.TransactionType, &t.TransactionTypeOriginal, &category, &t.CardBrand,
		&t.InstallmentCount, &t.GrossAmount, &t.CommissionRate, &t.CommissionAmount, &t.NetAmount,
		&rateSource, &t.RewardDeduction, &t.ServiceDeduction, &t.CommissionCalculated, &t.AmountDiff,
		&t.AmountDiffPct, &t.RateVerified, &t.RateExpected, &t.CommissionExpected, &t.RateDiff,
		&t.CommissionDiff, &t.RateMatch, &t.AmountMatch, &flags, &t.ControlStatus,
	)
	if err != nil {
		return nil, err
	}

	t.BankID = domain.BankID(bankID)
	t.Category = domain.Category(category)
	t.RateSource = domain.RateSource(rateSource)
	t.TransactionDate = parseNullableTime(txDate)
	t.SettlementDate = parseNullableTime(settleDate)
	t.ControlFlags = []string{}
	if flags != "" {
		t.ControlFlags = strings.Split(flags, domain.FlagSeparator)
	}
	return &t, nil
}
