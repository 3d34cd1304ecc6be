// Package pipeline runs ingestion, filtering, commission control and
// aggregation over the current file set, and keeps the latest result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/cashflow/posrecon/internal/aggregation"
	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/ingestion"
	"github.com/cashflow/posrecon/internal/ratetable"
	"github.com/cashflow/posrecon/internal/reconciliation"
)

// ErrNoData means there is nothing to process yet: the data directory is
// missing or holds no candidate files. It is distinct from every file
// failing to parse, which yields an empty result instead.
var ErrNoData = errors.New("no input data")

// Store persists the result of a run.
type Store interface {
	SaveRun(run *domain.Run, files []domain.FileReport, txns []domain.Transaction) error
}

type Options struct {
	DataDir      string
	Workers      int
	ExcludeTypes []string
	DefaultBank  string
	Granularity  aggregation.Granularity
	CacheTTL     time.Duration
}

// Result is the output of one run.
type Result struct {
	Run          domain.Run            `json:"run"`
	Files        []domain.FileReport   `json:"files"`
	Transactions []domain.Transaction  `json:"-"`
	Control      domain.ControlSummary `json:"control"`
	Report       aggregation.Report    `json:"report"`
	Stats        *ingestion.Stats      `json:"stats"`
	Rates        ratetable.VersionInfo `json:"rates"`
}

// Service orchestrates runs. Results are cached by file-set fingerprint and
// rate table version, so repeated calls over an unchanged data directory
// return the same result without reading any file twice.
type Service struct {
	reader *ingestion.Reader
	store  Store
	opts   Options
	log    zerolog.Logger
	cache  *cache.Cache

	mu     sync.Mutex
	rates  *ratetable.Snapshot
	latest atomic.Pointer[Result]
}

func NewService(reader *ingestion.Reader, rates *ratetable.Snapshot, store Store, opts Options, log zerolog.Logger) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	if opts.Granularity == "" {
		opts.Granularity = aggregation.Month
	}
	if opts.ExcludeTypes == nil {
		opts.ExcludeTypes = aggregation.DefaultExcludeTypes
	}
	return &Service{
		reader: reader,
		store:  store,
		opts:   opts,
		log:    log.With().Str("component", "pipeline").Logger(),
		cache:  cache.New(ttl, 10*time.Minute),
		rates:  rates,
	}
}

// Rates returns the rate snapshot used by the next run.
func (s *Service) Rates() *ratetable.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rates
}

// SetRates swaps the rate snapshot. The change is picked up by the next run.
func (s *Service) SetRates(rates *ratetable.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = rates
}

// Latest returns the most recent result, if any run has completed.
func (s *Service) Latest() (*Result, bool) {
	res := s.latest.Load()
	return res, res != nil
}

// Run returns the result for the current file set, computing it only when
// the files or the rate table changed since the last run.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	return s.run(ctx, false)
}

// Refresh recomputes the result even if nothing changed.
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, force bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, err := Fingerprint(s.opts.DataDir)
	if err != nil {
		return nil, err
	}
	key := fp + "/" + s.rates.Info().Version
	if !force {
		if v, ok := s.cache.Get(key); ok {
			s.log.Debug().Str("fingerprint", fp[:12]).Msg("file set unchanged, serving cached result")
			return v.(*Result), nil
		}
	}

	res, err := s.compute(ctx, fp)
	if err != nil {
		return nil, err
	}
	s.cache.Flush()
	s.cache.SetDefault(key, res)
	s.latest.Store(res)
	return res, nil
}

func (s *Service) compute(ctx context.Context, fingerprint string) (*Result, error) {
	started := time.Now().UTC()
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	dir, err := s.reader.ReadDirectory(ctx, s.opts.DataDir, s.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	kept := aggregation.FilterSuccessful(dir.Transactions, s.opts.ExcludeTypes)
	reconciled := reconciliation.NewService(s.rates, s.opts.DefaultBank, log).Reconcile(kept)

	res := &Result{
		Files:        dir.Files,
		Transactions: reconciled,
		Control:      reconciliation.Summarize(reconciled),
		Report:       aggregation.Build(reconciled, s.opts.Granularity),
		Stats:        dir.Stats,
		Rates:        s.rates.Info(),
	}
	res.Run = domain.Run{
		ID:          runID,
		Fingerprint: fingerprint,
		RateVersion: res.Rates.Version,
		DataDir:     s.opts.DataDir,
		FileCount:   len(dir.Files),
		FailedFiles: dir.Stats.FailedFiles,
		RowCount:    len(reconciled),
		FilteredOut: len(dir.Transactions) - len(kept),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
	}

	if s.store != nil {
		if err := s.store.SaveRun(&res.Run, res.Files, res.Transactions); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}

	log.Info().
		Int("files", res.Run.FileCount).
		Int("failed_files", res.Run.FailedFiles).
		Int("rows", res.Run.RowCount).
		Int("filtered_out", res.Run.FilteredOut).
		Int("flagged", res.Control.FlaggedCount).
		Str("status", res.Control.Status).
		Msg("pipeline run complete")
	return res, nil
}
