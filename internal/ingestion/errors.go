package ingestion

import "errors"

var (
	// ErrUnsupportedFormat is returned for files that are not xlsx, xls or csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEncodingExhausted means no candidate text encoding produced a usable table.
	ErrEncodingExhausted = errors.New("could not decode file with any supported encoding")
	// ErrEmptyFile means the file has no header row.
	ErrEmptyFile = errors.New("file has no header row")
)
