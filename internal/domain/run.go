package domain

import "time"

type FileStatus string

const (
	FileProcessed FileStatus = "processed"
	FileFailed    FileStatus = "failed"
	FileSkipped   FileStatus = "skipped"
)

// FileReport describes how one source file was ingested.
type FileReport struct {
	Path           string     `json:"path"`
	Name           string     `json:"name"`
	BankID         BankID     `json:"bank_id"`
	BankName       string     `json:"bank_name"`
	DetectedBy     string     `json:"detected_by,omitempty"`
	Encoding       string     `json:"encoding,omitempty"`
	Sheet          string     `json:"sheet,omitempty"`
	FileHash       string     `json:"file_hash"`
	Size           int64      `json:"size"`
	RecordCount    int        `json:"record_count"`
	MalformedRows  int        `json:"malformed_rows"`
	MissingColumns []string   `json:"missing_columns,omitempty"`
	Status         FileStatus `json:"status"`
	Error          string     `json:"error,omitempty"`
}

// Run is one full pipeline execution over the current file set.
type Run struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	RateVersion string    `json:"rate_version"`
	DataDir     string    `json:"data_dir"`
	FileCount   int       `json:"file_count"`
	FailedFiles int       `json:"failed_files"`
	RowCount    int       `json:"row_count"`
	FilteredOut int       `json:"filtered_out"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
