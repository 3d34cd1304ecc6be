package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cashflow/posrecon/internal/aggregation"
	"github.com/cashflow/posrecon/internal/logger"
	"github.com/cashflow/posrecon/internal/pipeline"
	"github.com/cashflow/posrecon/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	txnRepo     *repository.TransactionRepo
	runRepo     *repository.RunRepo
	pipelineSvc *pipeline.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pipeline.ErrNoData) {
		writeError(w, http.StatusNotFound, "no settlement files uploaded yet")
		return
	}
	l := logger.FromContext(r.Context())
	l.Error().Err(err).Msg("pipeline run failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func parseBool(s string) *bool {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &v
}

// latest returns the result for the current file set. The pipeline only
// recomputes when the files or the rate table changed since its last run.
// If a recompute fails, the previous result keeps being served.
func (h *Handlers) latest(ctx context.Context) (*pipeline.Result, error) {
	res, err := h.pipelineSvc.Run(ctx)
	if err == nil || errors.Is(err, pipeline.ErrNoData) {
		return res, err
	}
	if prev, ok := h.pipelineSvc.Latest(); ok {
		l := logger.FromContext(ctx)
		l.Warn().Err(err).Str("run_id", prev.Run.ID).
			Msg("pipeline run failed, serving previous result")
		return prev, nil
	}
	return nil, err
}

// sync brings the stored run up to date before a handler reads from the
// database. An empty data directory leaves the last stored run in place.
func (h *Handlers) sync(w http.ResponseWriter, r *http.Request) bool {
	if _, err := h.latest(r.Context()); err != nil && !errors.Is(err, pipeline.ErrNoData) {
		writeRunError(w, r, err)
		return false
	}
	return true
}

// --- ListTransactions ---

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.sync(w, r) {
		return
	}
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		BankID:   q.Get("bank"),
		Category: q.Get("category"),
		Flagged:  parseBool(q.Get("flagged")),
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	txns, total, err := h.txnRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
		"page":         filter.Page,
		"limit":        filter.Limit,
	})
}

// --- GetSummary ---

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.latest(r.Context())
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":           res.Run,
		"control":       res.Control,
		"ground_totals": res.Report.Ground,
		"rates":         res.Rates,
	})
}

// --- GetBankSummary ---

func (h *Handlers) GetBankSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.latest(r.Context())
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	control, err := h.txnRepo.GetControlStatsByBank()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"banks":   res.Report.Banks,
		"control": control,
	})
}

// --- GetInstallmentSummary ---

func (h *Handlers) GetInstallmentSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.latest(r.Context())
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"installments": res.Report.Installments,
	})
}

// --- GetPeriodSummary ---

func (h *Handlers) GetPeriodSummary(w http.ResponseWriter, r *http.Request) {
	res, err := h.latest(r.Context())
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	g := res.Report.Granularity
	if s := r.URL.Query().Get("granularity"); s != "" {
		var ok bool
		if g, ok = aggregation.ParseGranularity(s); !ok {
			writeError(w, http.StatusBadRequest, "granularity must be month or quarter")
			return
		}
	}

	periods, bankPeriods := res.Report.Periods, res.Report.BankPeriods
	if g != res.Report.Granularity {
		periods = aggregation.ByPeriod(res.Transactions, g)
		bankPeriods = aggregation.ByBankAndPeriod(res.Transactions, g)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"granularity":  g,
		"periods":      periods,
		"bank_periods": bankPeriods,
	})
}

// --- ListFiles ---

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	if !h.sync(w, r) {
		return
	}
	run, err := h.runRepo.LatestRun()
	if errors.Is(err, repository.ErrNoRun) {
		writeError(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	files, err := h.runRepo.Files()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":   run,
		"files": files,
	})
}

// --- GetRates ---

func (h *Handlers) GetRates(w http.ResponseWriter, r *http.Request) {
	rates := h.pipelineSvc.Rates()
	writeJSON(w, http.StatusOK, map[string]any{
		"info":  rates.Info(),
		"banks": rates.Banks(),
	})
}

// --- Refresh ---

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.pipelineSvc.Refresh(r.Context())
	if err != nil {
		writeRunError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     res.Run,
		"control": res.Control,
		"stats":   res.Stats,
	})
}
