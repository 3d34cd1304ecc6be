package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cashflow/posrecon/internal/domain"
)

// ErrNoRun is returned when no pipeline run has been saved yet.
var ErrNoRun = errors.New("no run recorded")

const missingColumnsSep = ","

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun replaces the stored run with the given one. Run metadata, file
// reports and reconciled rows are written in a single transaction, so
// readers see either the previous run or the new one.
func (r *RunRepo) SaveRun(run *domain.Run, files []domain.FileReport, txns []domain.Transaction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "source_files", "runs"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO runs
		(id, fingerprint, rate_version, data_dir, file_count, failed_files,
		 row_count, filtered_out, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Fingerprint, run.RateVersion, run.DataDir, run.FileCount,
		run.FailedFiles, run.RowCount, run.FilteredOut,
		run.StartedAt.Format(time.RFC3339Nano), run.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertFiles(tx, run.ID, files); err != nil {
		return err
	}
	if err := insertTransactions(tx, run.ID, txns); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertFiles(tx *sql.Tx, runID string, files []domain.FileReport) error {
	stmt, err := tx.Prepare(
		`INSERT INTO source_files
		(run_id, path, name, bank_id, bank_name, detected_by, encoding, sheet,
		 file_hash, size, record_count, malformed_rows, missing_columns, status, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare files: %w", err)
	}
	defer stmt.Close()

	for i := range files {
		f := &files[i]
		_, err := stmt.Exec(
			runID, f.Path, f.Name, string(f.BankID), f.BankName, f.DetectedBy, f.Encoding,
			f.Sheet, f.FileHash, f.Size, f.RecordCount, f.MalformedRows,
			strings.Join(f.MissingColumns, missingColumnsSep), string(f.Status), f.Error,
		)
		if err != nil {
			return fmt.Errorf("insert file %s: %w", f.Name, err)
		}
	}
	return nil
}

// LatestRun returns the stored run, or ErrNoRun.
func (r *RunRepo) LatestRun() (*domain.Run, error) {
	var run domain.Run
	var startedAt, finishedAt string
	err := r.db.QueryRow(
		`SELECT id, fingerprint, rate_version, data_dir, file_count, failed_files,
		 row_count, filtered_out, started_at, finished_at
		 FROM runs ORDER BY finished_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.Fingerprint, &run.RateVersion, &run.DataDir, &run.FileCount,
		&run.FailedFiles, &run.RowCount, &run.FilteredOut, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	return &run, nil
}

// Files returns the file reports of the stored run in ingestion order.
func (r *RunRepo) Files() ([]domain.FileReport, error) {
	rows, err := r.db.Query(
		`SELECT path, name, bank_id, bank_name, detected_by, encoding, sheet, file_hash,
		 size, record_count, malformed_rows, missing_columns, status, error
		 FROM source_files ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := []domain.FileReport{}
	for rows.Next() {
		var f domain.FileReport
		var bankID, missing, status string
		if err := rows.Scan(&f.Path, &f.Name, &bankID, &f.BankName, &f.DetectedBy, &f.Encoding,
			&f.Sheet, &f.FileHash, &f.Size, &f.RecordCount, &f.MalformedRows,
			&missing, &status, &f.Error); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		f.BankID = domain.BankID(bankID)
		f.Status = domain.FileStatus(status)
		if missing != "" {
			f.MissingColumns = strings.Split(missing, missingColumnsSep)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
