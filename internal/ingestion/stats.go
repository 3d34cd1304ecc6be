package ingestion

import (
	"sort"

	"github.com/rs/zerolog"
)

// Stats holds statistics about one directory read.
type Stats struct {
	TotalFiles     int               `json:"total_files"`
	ProcessedFiles int               `json:"processed_files"`
	FailedFiles    int               `json:"failed_files"`
	TotalRows      int               `json:"total_rows"`
	Failures       map[string]string `json:"failures,omitempty"`
}

// NewStats creates and initializes a new Stats object.
func NewStats() *Stats {
	return &Stats{
		Failures: make(map[string]string),
	}
}

// AddFailure records a failed file and its reason.
func (s *Stats) AddFailure(file, reason string) {
	s.FailedFiles++
	s.Failures[file] = reason
}

// AddProcessed records a successfully read file.
func (s *Stats) AddProcessed(rows int) {
	s.ProcessedFiles++
	s.TotalRows += rows
}

// Log writes the statistics to the provided logger.
func (s *Stats) Log(logger zerolog.Logger) {
	logger.Info().
		Int("total_files", s.TotalFiles).
		Int("processed_files", s.ProcessedFiles).
		Int("failed_files", s.FailedFiles).
		Int("total_rows", s.TotalRows).
		Msg("ingestion finished")

	files := make([]string, 0, len(s.Failures))
	for f := range s.Failures {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		logger.Warn().Str("file", f).Str("reason", s.Failures[f]).Msg("file skipped")
	}
}
