// Package ratetable holds the contractual commission rates banks agreed to,
// as an immutable snapshot passed to each reconciliation run.
package ratetable

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cashflow/posrecon/configs"
	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/domain"
)

// DefaultThreshold is the absolute rate tolerance used when the source does
// not set one.
const DefaultThreshold = 0.005

// PesinKey is the installment key of single-payment rates.
const PesinKey = 1

var ErrNoRates = errors.New("rate table has no banks")

// BankRates is one bank's contract.
type BankRates struct {
	Key     string          `json:"key"`
	Aliases []string        `json:"aliases"`
	Rates   map[int]float64 `json:"rates"`
}

// VersionInfo identifies a loaded rate table.
type VersionInfo struct {
	Version   string  `json:"version"`
	BankCount int     `json:"bank_count"`
	Threshold float64 `json:"threshold"`
}

// Snapshot is a read-only rate table. Callers load a new snapshot to pick
// up changes.
type Snapshot struct {
	banks     []BankRates
	threshold float64
	version   string
}

type file struct {
	Anomaly struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"anomaly"`
	Banks map[string]struct {
		Aliases []string        `yaml:"aliases"`
		Rates   map[int]float64 `yaml:"rates"`
	} `yaml:"banks"`
}

// Load reads a snapshot from path, or the embedded default when path is
// empty.
func Load(path string) (*Snapshot, error) {
	if path == "" {
		return Parse(configs.Rates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded snapshot.
func Default() *Snapshot {
	s, err := Parse(configs.Rates)
	if err != nil {
		panic(fmt.Sprintf("embedded rate table: %v", err))
	}
	return s
}

// Parse decodes a snapshot from YAML.
func Parse(data []byte) (*Snapshot, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rate table: %w", err)
	}
	if len(f.Banks) == 0 {
		return nil, ErrNoRates
	}

	s := &Snapshot{
		threshold: f.Anomaly.Threshold,
		version:   fmt.Sprintf("%x", sha256.Sum256(data))[:8],
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	for key, b := range f.Banks {
		rates := make(map[int]float64, len(b.Rates))
		for inst, r := range b.Rates {
			if inst < PesinKey {
				inst = PesinKey
			}
			rates[inst] = r
		}
		s.banks = append(s.banks, BankRates{Key: key, Aliases: b.Aliases, Rates: rates})
	}
	sort.Slice(s.banks, func(i, j int) bool { return s.banks[i].Key < s.banks[j].Key })
	return s, nil
}

// Threshold is the absolute tolerance for rate comparison.
func (s *Snapshot) Threshold() float64 { return s.threshold }

func (s *Snapshot) Info() VersionInfo {
	return VersionInfo{Version: s.version, BankCount: len(s.banks), Threshold: s.threshold}
}

// Banks returns the contracts sorted by key.
func (s *Snapshot) Banks() []BankRates {
	out := make([]BankRates, len(s.banks))
	copy(out, s.banks)
	return out
}

// Lookup returns the contractual rate for a bank and installment count.
// The bank is resolved by id, then by exact alias, then by case-insensitive
// substring match between name and alias in either direction. Installment
// counts of 0 and 1 use the single-payment rate.
func (s *Snapshot) Lookup(bankID domain.BankID, bankName string, installments int) (float64, bool) {
	b := s.resolve(bankID, bankName)
	if b == nil {
		return 0, false
	}
	if installments <= PesinKey {
		installments = PesinKey
	}
	r, ok := b.Rates[installments]
	return r, ok
}

func (s *Snapshot) resolve(bankID domain.BankID, bankName string) *BankRates {
	if bankID != domain.BankUnknown {
		for i := range s.banks {
			if s.banks[i].Key == string(bankID) {
				return &s.banks[i]
			}
		}
	}
	name := strings.TrimSpace(bankName)
	if name == "" {
		return nil
	}
	for i := range s.banks {
		for _, a := range s.banks[i].Aliases {
			if a == name {
				return &s.banks[i]
			}
		}
	}
	folded := colname.Fold(name)
	for i := range s.banks {
		for _, a := range s.banks[i].Aliases {
			fa := colname.Fold(strings.TrimSpace(a))
			if fa == "" {
				continue
			}
			if strings.Contains(folded, fa) || strings.Contains(fa, folded) {
				return &s.banks[i]
			}
		}
	}
	return nil
}
