package ingestion

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/domain"
)

// Detection methods reported in FileReport.DetectedBy.
const (
	DetectedByKeyword = "filename_keyword"
	DetectedByPattern = "config_pattern"
	DetectedByHeaders = "headers"
	DetectedByCaller  = "explicit"
)

type keyword struct {
	word string
	bank domain.BankID
}

// filenameKeywords is checked in order against the folded filename.
var filenameKeywords = []keyword{
	{"vakif", domain.BankVakifbank},
	{"akbank", domain.BankAkbank},
	{"garanti", domain.BankGaranti},
	{"halkbank", domain.BankHalkbank},
	{"halk", domain.BankHalkbank},
	{"ziraat", domain.BankZiraat},
	{"ykb", domain.BankYKB},
	{"yapi kredi", domain.BankYKB},
	{"yapikredi", domain.BankYKB},
	{"qnb", domain.BankQNB},
	{"finans", domain.BankQNB},
	{"isbank", domain.BankIsbank},
	{"is bank", domain.BankIsbank},
}

// bankNames maps filename fragments of unidentified files to display names.
var bankNames = []struct {
	word string
	name string
}{
	{"akbank", "AKBANK T.A.S."},
	{"garanti", "T. GARANTI BANKASI A.S."},
	{"halkbank", "T. HALK BANKASI A.S."},
	{"halkabank", "T. HALK BANKASI A.S."},
	{"ziraat", "ZİRAAT BANKASI"},
	{"ykb", "YAPI VE KREDI BANKASI A.S."},
	{"yapi kredi", "YAPI VE KREDI BANKASI A.S."},
	{"qnb", "FINANSBANK A.S."},
	{"finans", "FINANSBANK A.S."},
	{"isbank", "T. IS BANKASI A.S."},
	{"vakifbank", "T. VAKIFLAR BANKASI T.A.O."},
}

var leadingNumbering = regexp.MustCompile(`^[\d.\s]+`)

// Detector identifies the bank a file belongs to.
type Detector struct {
	registry *bankconfig.Registry
}

func NewDetector(registry *bankconfig.Registry) *Detector {
	return &Detector{registry: registry}
}

// ByFilename matches the bank keyword table, then each bank's configured
// file pattern stem and display name.
func (d *Detector) ByFilename(name string) (domain.BankID, string) {
	folded := colname.Fold(filepath.Base(name))
	for _, k := range filenameKeywords {
		if strings.Contains(folded, k.word) {
			return k.bank, DetectedByKeyword
		}
	}
	for _, b := range d.registry.Banks() {
		if stem := patternStem(b.FilePattern); stem != "" && strings.Contains(folded, stem) {
			return b.ID, DetectedByPattern
		}
		if dn := colname.Fold(b.DisplayName); dn != "" && strings.Contains(folded, dn) {
			return b.ID, DetectedByPattern
		}
	}
	return domain.BankUnknown, ""
}

func patternStem(pattern string) string {
	p := colname.Fold(pattern)
	p = strings.ReplaceAll(p, "*", "")
	p = strings.TrimSuffix(p, filepath.Ext(p))
	return strings.TrimSpace(p)
}

// ByHeaders scores each bank by how many of its configured raw columns
// appear in headers. The winner needs at least max(2, ceil(0.2*n)) matches,
// n being the bank's column count; ties go to the higher match ratio.
func (d *Detector) ByHeaders(headers []string) domain.BankID {
	cols := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if n := colname.Normalize(h); n != "" {
			cols[n] = struct{}{}
		}
	}
	if len(cols) == 0 {
		return domain.BankUnknown
	}

	best := domain.BankUnknown
	bestScore, bestRatio, bestMin := 0, 0.0, 0
	for _, b := range d.registry.Banks() {
		raw := b.NormalizedColumns()
		if len(raw) == 0 {
			continue
		}
		score := 0
		for c := range raw {
			if _, ok := cols[c]; ok {
				score++
			}
		}
		if score == 0 {
			continue
		}
		ratio := float64(score) / float64(len(raw))
		if score > bestScore || (score == bestScore && ratio > bestRatio) {
			best, bestScore, bestRatio = b.ID, score, ratio
			bestMin = int(math.Max(2, math.Ceil(float64(len(raw))*0.2)))
		}
	}
	if best == domain.BankUnknown || bestScore < bestMin {
		return domain.BankUnknown
	}
	return best
}

// InferBankName guesses a display name for a file no bank claimed.
func InferBankName(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.TrimSpace(leadingNumbering.ReplaceAllString(stem, ""))
	folded := colname.Fold(stem)
	for _, n := range bankNames {
		if strings.Contains(folded, n.word) {
			return n.name
		}
	}
	return stem
}
