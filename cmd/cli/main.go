package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cashflow/posrecon/internal/aggregation"
	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/config"
	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/ingestion"
	"github.com/cashflow/posrecon/internal/logger"
	"github.com/cashflow/posrecon/internal/pipeline"
	"github.com/cashflow/posrecon/internal/ratetable"
	"github.com/cashflow/posrecon/internal/repository"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "reconcile":
		if code := runReconcile(log, cfg); code != 0 {
			os.Exit(code)
		}
	case "detect":
		runDetect(log, cfg)
	case "banks":
		runBanks(log, cfg)
	case "rates":
		runRates(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("POS Settlement Reconciler CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  reconcile  Read a data directory, check commissions and print the summary")
	fmt.Println("  detect     Show how a single export file is detected and read")
	fmt.Println("  banks      List configured banks")
	fmt.Println("  rates      Show the contractual rate table")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func loadBanks(log zerolog.Logger, cfg *config.Config) *bankconfig.Registry {
	banks, err := bankconfig.Load(cfg.BanksConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bank configuration")
	}
	return banks
}

func loadRates(log zerolog.Logger, path string) *ratetable.Snapshot {
	rates, err := ratetable.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load rate table")
	}
	return rates
}

// runReconcile returns the process exit code; 2 means the data directory
// held no settlement files.
func runReconcile(log zerolog.Logger, cfg *config.Config) int {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	dir := fs.String("dir", cfg.DataDir, "Data directory with bank exports")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	dbPath := fs.String("db", "", "Also persist the run to this SQLite database")
	ratesPath := fs.String("rates", cfg.RatesConfig, "Rate table YAML (embedded default when empty)")
	granularity := fs.String("granularity", cfg.PeriodGranularity, "Period granularity: month or quarter")
	fs.Parse(os.Args[2:])

	g, ok := aggregation.ParseGranularity(*granularity)
	if !ok {
		log.Fatal().Str("granularity", *granularity).Msg("Error: -granularity must be month or quarter")
	}

	var store pipeline.Store
	if *dbPath != "" {
		db, err := repository.InitDB(*dbPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to init DB")
		}
		defer db.Close()
		store = repository.NewRunRepo(db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	svc := pipeline.NewService(
		ingestion.NewReader(loadBanks(log, cfg), log),
		loadRates(log, *ratesPath),
		store,
		pipeline.Options{
			DataDir:      *dir,
			Workers:      cfg.ReadWorkers,
			ExcludeTypes: cfg.ExcludeTypes,
			DefaultBank:  cfg.DefaultBank,
			Granularity:  g,
		},
		log,
	)

	log.Info().Str("dir", *dir).Msg("Starting reconciliation")
	res, err := svc.Run(ctx)
	if errors.Is(err, pipeline.ErrNoData) {
		fmt.Fprintf(os.Stderr, "No settlement files found in %s\n", *dir)
		return 2
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode result")
		}
		return 0
	}
	printResult(res)
	return 0
}

func printResult(res *pipeline.Result) {
	fmt.Println("\n=== Run ===")
	fmt.Printf("ID:           %s\n", res.Run.ID)
	fmt.Printf("Files:        %d (%d failed)\n", res.Run.FileCount, res.Run.FailedFiles)
	fmt.Printf("Rows:         %d (%d filtered out)\n", res.Run.RowCount, res.Run.FilteredOut)
	fmt.Printf("Rate table:   %s\n", res.Run.RateVersion)

	fmt.Println("\n=== Files ===")
	for _, f := range res.Files {
		if f.Status == domain.FileFailed {
			fmt.Printf("  %-40s FAILED: %s\n", f.Name, f.Error)
			continue
		}
		fmt.Printf("  %-40s %-28s %5d rows\n", f.Name, f.BankName, f.RecordCount)
		if len(f.MissingColumns) > 0 {
			fmt.Printf("  %-40s missing: %s\n", "", strings.Join(f.MissingColumns, ", "))
		}
	}

	fmt.Println("\n=== Banks ===")
	for _, b := range res.Report.Banks {
		fmt.Printf("  %-28s %5d  gross %14.2f  commission %12.2f  (%5.2f%%)  mismatched %d\n",
			b.BankName, b.TransactionCount, b.GrossAmount, b.CommissionAmount, b.CommissionPct, b.MismatchedCount)
	}

	fmt.Println("\n=== Installments ===")
	for _, i := range res.Report.Installments {
		fmt.Printf("  %-10s %5d  gross %14.2f  commission %12.2f  (%5.2f%%)\n",
			i.Bucket, i.TransactionCount, i.GrossAmount, i.CommissionAmount, i.CommissionPct)
	}

	fmt.Printf("\n=== Periods (%s) ===\n", res.Report.Granularity)
	for _, p := range res.Report.Periods {
		fmt.Printf("  %-10s %5d  gross %14.2f  net %14.2f\n",
			p.Period, p.TransactionCount, p.GrossAmount, p.NetAmount)
	}

	c := res.Control
	g := res.Report.Ground
	fmt.Println("\n=== Commission control ===")
	fmt.Printf("Gross:        %.2f\n", g.GrossAmount)
	fmt.Printf("Commission:   %.2f (expected %.2f, diff %.2f)\n",
		c.TotalCommissionActual, c.TotalCommissionExpected, c.TotalCommissionDiff)
	fmt.Printf("Net:          %.2f\n", g.NetAmount)
	fmt.Printf("Rate match:   %d/%d (%.2f%%)\n", c.RateMatchedCount, c.TotalTransactions, c.MatchPercentage)
	fmt.Printf("Amount check: %d mismatched\n", c.AmountMismatchedCount)
	fmt.Printf("Rate source:  %d file, %d calculated\n", c.RateFromFileCount, c.RateCalculatedCount)
	fmt.Printf("Status:       %s\n", c.Status)
	fmt.Println()
}

func runDetect(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	file := fs.String("file", "", "Path to a bank export")
	bank := fs.String("bank", "", "Skip detection and read as this bank id")
	sheet := fs.String("sheet", "", "Spreadsheet sheet name (first sheet when empty)")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Error: -file is required")
	}

	reader := ingestion.NewReader(loadBanks(log, cfg), log)
	res, err := reader.ReadFile(*file, ingestion.ReadOptions{Bank: domain.BankID(*bank), Sheet: *sheet})
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read file")
	}

	r := res.Report
	fmt.Println("\n=== File ===")
	fmt.Printf("Name:        %s\n", r.Name)
	fmt.Printf("Bank:        %s (%s)\n", r.BankName, r.BankID)
	fmt.Printf("Detected by: %s\n", r.DetectedBy)
	if r.Encoding != "" {
		fmt.Printf("Encoding:    %s\n", r.Encoding)
	}
	if r.Sheet != "" {
		fmt.Printf("Sheet:       %s\n", r.Sheet)
	}
	fmt.Printf("SHA-256:     %s\n", r.FileHash)
	fmt.Printf("Rows:        %d (%d malformed skipped)\n", r.RecordCount, r.MalformedRows)
	if len(r.MissingColumns) > 0 {
		fmt.Printf("Missing:     %s\n", strings.Join(r.MissingColumns, ", "))
	}

	limit := len(res.Transactions)
	if limit > 5 {
		limit = 5
	}
	fmt.Printf("\n=== First %d rows ===\n", limit)
	for i, t := range res.Transactions[:limit] {
		fmt.Printf("\n%d. %s (%s)\n", i+1, t.TransactionType, t.Category)
		fmt.Printf("   Gross:       %.2f\n", t.GrossAmount)
		fmt.Printf("   Commission:  %.2f at %.4f (%s)\n", t.CommissionAmount, t.CommissionRate, t.RateSource)
		fmt.Printf("   Net:         %.2f\n", t.NetAmount)
		fmt.Printf("   Installment: %d\n", t.InstallmentCount)
	}
	fmt.Println()
}

func runBanks(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("banks", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	for _, b := range loadBanks(log, cfg).Banks() {
		fmt.Printf("%-10s %-28s pattern=%-18s columns=%d\n",
			b.ID, b.DisplayName, b.FilePattern, len(b.RawColumns))
	}
}

func runRates(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("rates", flag.ExitOnError)
	path := fs.String("rates", cfg.RatesConfig, "Rate table YAML (embedded default when empty)")
	fs.Parse(os.Args[2:])

	rates := loadRates(log, *path)
	info := rates.Info()
	fmt.Printf("Version: %s  banks: %d  threshold: %.4f\n", info.Version, info.BankCount, info.Threshold)

	for _, b := range rates.Banks() {
		fmt.Printf("\n%s (%s)\n", b.Key, strings.Join(b.Aliases, ", "))
		counts := make([]int, 0, len(b.Rates))
		for n := range b.Rates {
			counts = append(counts, n)
		}
		sort.Ints(counts)
		for _, n := range counts {
			fmt.Printf("  %-10s %.4f\n", aggregation.InstallmentBucket(n), b.Rates[n])
		}
	}
}
