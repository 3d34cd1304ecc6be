package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/domain"
)

// SupportedExtensions are the file types the reader can decode.
var SupportedExtensions = map[string]bool{".xlsx": true, ".xls": true, ".csv": true}

// ReadOptions overrides detection for a single file.
type ReadOptions struct {
	Bank  domain.BankID // skip detection when set
	Sheet string        // spreadsheet sheet; first sheet when empty
}

// FileResult is one decoded and normalized file.
type FileResult struct {
	Report       domain.FileReport
	Transactions []domain.Transaction
}

// DirectoryResult is the concatenation of every readable file in a tree.
type DirectoryResult struct {
	Files        []domain.FileReport
	Transactions []domain.Transaction
	Stats        *Stats
}

// Reader decodes bank export files into normalized transactions.
type Reader struct {
	registry *bankconfig.Registry
	detector *Detector
	log      zerolog.Logger
}

func NewReader(registry *bankconfig.Registry, log zerolog.Logger) *Reader {
	return &Reader{
		registry: registry,
		detector: NewDetector(registry),
		log:      log.With().Str("component", "ingestion").Logger(),
	}
}

// Detector exposes the reader's bank detector.
func (r *Reader) Detector() *Detector { return r.detector }

// ReadFile reads one export: detects the bank, decodes the sheet, maps
// columns, runs the bank transform and the shared finalization.
func (r *Reader) ReadFile(path string, opts ReadOptions) (*FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(path)
	report := domain.FileReport{
		Path:     path,
		Name:     name,
		FileHash: fmt.Sprintf("%x", sha256.Sum256(data)),
		Size:     int64(len(data)),
	}

	bankID, method := opts.Bank, DetectedByCaller
	if bankID == domain.BankUnknown {
		bankID, method = r.detector.ByFilename(name)
	}
	bank, _ := r.registry.Get(bankID)

	t, err := decode(name, data, optionsFor(bank, opts.Sheet))
	if err != nil {
		return nil, err
	}

	if bankID == domain.BankUnknown {
		if bankID = r.detector.ByHeaders(t.headers); bankID != domain.BankUnknown {
			method = DetectedByHeaders
			bank, _ = r.registry.Get(bankID)
			if strings.EqualFold(filepath.Ext(name), ".csv") && needsRedecode(t, bank) {
				if again, err := decode(name, data, optionsFor(bank, opts.Sheet)); err == nil {
					t = again
				}
			}
		}
	}

	bankName := InferBankName(name)
	if bank != nil {
		bankName = bank.DisplayName
	} else {
		method = ""
		r.log.Warn().Str("file", name).Str("bank_name", bankName).Msg("bank not identified, using generic mapping")
	}

	frame := buildFrame(t, mapColumns(t.headers, bank))
	batch := TransformerFor(bankID).Normalize(frame, bank)
	finalize(batch)

	report.BankID = bankID
	report.BankName = bankName
	report.DetectedBy = method
	report.Encoding = t.encoding
	report.Sheet = t.sheet
	report.RecordCount = batch.Len
	report.MalformedRows = t.malformed
	report.Status = domain.FileProcessed
	if bank != nil {
		if v := ValidateColumns(bank, frame); len(v.Missing) > 0 {
			report.MissingColumns = v.Missing
			r.log.Warn().Str("file", name).Str("bank", string(bankID)).
				Strs("missing", v.Missing).Msg("required columns missing after mapping")
		}
	}

	r.log.Debug().Str("file", name).Str("bank", string(bankID)).Str("detected_by", method).
		Int("rows", batch.Len).Msg("file read")

	return &FileResult{
		Report:       report,
		Transactions: batch.toTransactions(bankID, bankName, name),
	}, nil
}

// needsRedecode reports whether a CSV read with sniffed settings should be
// read again with the detected bank's own settings.
func needsRedecode(t *table, bank *bankconfig.Bank) bool {
	if bank == nil {
		return false
	}
	return bank.SkipRows > 0 || bank.Comma() != t.delimiter ||
		(bank.Encoding != "" && !strings.EqualFold(bank.Encoding, t.encoding))
}

// ReadDirectory reads every supported file under dir, from a flat layout
// and from {bank}/{year-month}/ sub-directories. Unreadable files are logged
// and skipped. Results keep the sorted path order regardless of workers.
func (r *Reader) ReadDirectory(ctx context.Context, dir string, workers int) (*DirectoryResult, error) {
	paths, err := CollectFiles(dir)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]*FileResult, len(paths))
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.ReadFile(p, ReadOptions{})
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &DirectoryResult{Stats: NewStats()}
	out.Stats.TotalFiles = len(paths)
	for i, p := range paths {
		if failures[i] != nil {
			name := filepath.Base(p)
			r.log.Error().Err(failures[i]).Str("file", name).Msg("could not read file, skipping")
			out.Stats.AddFailure(name, failures[i].Error())
			out.Files = append(out.Files, domain.FileReport{
				Path:   p,
				Name:   name,
				Status: domain.FileFailed,
				Error:  failures[i].Error(),
			})
			continue
		}
		out.Stats.AddProcessed(len(results[i].Transactions))
		out.Files = append(out.Files, results[i].Report)
		out.Transactions = append(out.Transactions, results[i].Transactions...)
	}
	out.Stats.Log(r.log)
	return out, nil
}

// CollectFiles lists supported files in dir, dir/{bank}/ and
// dir/{bank}/{month}/, skipping hidden entries and Office lock files.
// Paths are returned sorted.
func CollectFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// unreadable entry below the root
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		depth := 0
		if rel != "." {
			depth = len(strings.Split(rel, string(filepath.Separator)))
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || depth > 2 {
				return filepath.SkipDir
			}
			return nil
		}
		if skipName(d.Name()) {
			return nil
		}
		if SupportedExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
