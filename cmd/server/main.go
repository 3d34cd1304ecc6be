package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cashflow/posrecon/internal/aggregation"
	"github.com/cashflow/posrecon/internal/api"
	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/config"
	"github.com/cashflow/posrecon/internal/ingestion"
	"github.com/cashflow/posrecon/internal/logger"
	"github.com/cashflow/posrecon/internal/pipeline"
	"github.com/cashflow/posrecon/internal/ratetable"
	"github.com/cashflow/posrecon/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	log.Info().Str("path", cfg.DBPath).Msg("Initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init DB")
	}
	defer db.Close()

	banks, err := bankconfig.Load(cfg.BanksConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bank configuration")
	}
	rates, err := ratetable.Load(cfg.RatesConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rate table")
	}
	info := rates.Info()
	log.Info().Str("version", info.Version).Int("banks", info.BankCount).
		Float64("threshold", info.Threshold).Msg("Rate table loaded")

	// Create repositories.
	txnRepo := repository.NewTransactionRepo(db)
	runRepo := repository.NewRunRepo(db)

	// Create services.
	granularity, _ := aggregation.ParseGranularity(cfg.PeriodGranularity)
	reader := ingestion.NewReader(banks, log)
	pipelineSvc := pipeline.NewService(reader, rates, runRepo, pipeline.Options{
		DataDir:      cfg.DataDir,
		Workers:      cfg.ReadWorkers,
		ExcludeTypes: cfg.ExcludeTypes,
		DefaultBank:  cfg.DefaultBank,
		Granularity:  granularity,
		CacheTTL:     cfg.CacheTTL,
	}, log)

	// Initial run so the first request is served from the cache.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	res, err := pipelineSvc.Run(ctx)
	cancel()
	switch {
	case errors.Is(err, pipeline.ErrNoData):
		log.Warn().Str("data_dir", cfg.DataDir).Msg("No settlement files found, waiting for uploads")
	case err != nil:
		log.Error().Err(err).Msg("Initial run failed")
	default:
		log.Info().Str("run_id", res.Run.ID).Int("rows", res.Run.RowCount).
			Str("status", res.Control.Status).Msg("Initial run complete")
	}

	// Create router.
	router := api.NewRouter(txnRepo, runRepo, pipelineSvc, log)

	log.Info().Msg("POS Settlement Reconciler")
	log.Info().Msgf("Listening on http://localhost:%s", cfg.Port)
	log.Info().Msgf("API base: http://localhost:%s/api/v1", cfg.Port)
	log.Info().Msg("Endpoints:")
	log.Info().Msg("  GET    /api/v1/transactions")
	log.Info().Msg("  GET    /api/v1/summary")
	log.Info().Msg("  GET    /api/v1/summary/banks")
	log.Info().Msg("  GET    /api/v1/summary/installments")
	log.Info().Msg("  GET    /api/v1/summary/periods")
	log.Info().Msg("  GET    /api/v1/files")
	log.Info().Msg("  GET    /api/v1/rates")
	log.Info().Msg("  POST   /api/v1/refresh")

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
