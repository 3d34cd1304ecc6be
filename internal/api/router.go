package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cashflow/posrecon/internal/logger"
	"github.com/cashflow/posrecon/internal/pipeline"
	"github.com/cashflow/posrecon/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	txnRepo *repository.TransactionRepo,
	runRepo *repository.RunRepo,
	pipelineSvc *pipeline.Service,
	log zerolog.Logger,
) http.Handler {
	h := &Handlers{
		txnRepo:     txnRepo,
		runRepo:     runRepo,
		pipelineSvc: pipelineSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Reconciled rows of the latest run.
		r.Get("/transactions", h.ListTransactions)

		// Summaries.
		r.Get("/summary", h.GetSummary)
		r.Get("/summary/banks", h.GetBankSummary)
		r.Get("/summary/installments", h.GetInstallmentSummary)
		r.Get("/summary/periods", h.GetPeriodSummary)

		// Inputs.
		r.Get("/files", h.ListFiles)
		r.Get("/rates", h.GetRates)

		r.Post("/refresh", h.Refresh)
	})

	return r
}

// requestLogger puts a logger tagged with the request id into the request
// context.
func requestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.WithFields(base, map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
				"path":       r.URL.Path,
			})
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		})
	}
}
