// Package bankconfig loads the per-bank export descriptors used to detect,
// decode and map POS settlement files.
package bankconfig

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cashflow/posrecon/configs"
	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/domain"
)

// Bank describes one bank's export format.
type Bank struct {
	ID          domain.BankID `yaml:"-"`
	DisplayName string        `yaml:"display_name"`
	FilePattern string        `yaml:"file_pattern"`
	Delimiter   string        `yaml:"delimiter"`
	Encoding    string        `yaml:"encoding"`
	SkipRows    int           `yaml:"skip_rows"`
	Sheet       string        `yaml:"sheet"`

	// DateLayout is a Go time layout tried before the generic layouts.
	DateLayout string `yaml:"date_layout"`

	RawColumns         map[string]string `yaml:"raw_columns"`
	TransactionTypeMap map[string]string `yaml:"transaction_type_map"`
	TransactionTypes   struct {
		Successful []string `yaml:"successful"`
	} `yaml:"transaction_types"`

	normalized map[string]struct{}
}

// Comma returns the CSV field delimiter, defaulting to ','.
func (b *Bank) Comma() rune {
	if b.Delimiter == "" {
		return ','
	}
	return []rune(b.Delimiter)[0]
}

// NormalizedColumns is the set of normalized raw column names, used for
// header-based detection.
func (b *Bank) NormalizedColumns() map[string]struct{} {
	return b.normalized
}

// StandardColumns returns the distinct standard columns this bank maps to,
// sorted.
func (b *Bank) StandardColumns() []string {
	seen := make(map[string]struct{}, len(b.RawColumns))
	var out []string
	for _, std := range b.RawColumns {
		if _, ok := seen[std]; ok {
			continue
		}
		seen[std] = struct{}{}
		out = append(out, std)
	}
	sort.Strings(out)
	return out
}

// RawNames returns the configured raw column names in sorted order.
func (b *Bank) RawNames() []string {
	out := make([]string, 0, len(b.RawColumns))
	for raw := range b.RawColumns {
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

// Registry is the immutable set of configured banks.
type Registry struct {
	banks map[domain.BankID]*Bank
}

type file struct {
	Banks map[string]*Bank `yaml:"banks"`
}

// Load reads the registry from path, or from the embedded default when path
// is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(configs.Banks)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank config: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded registry. It panics if the embedded YAML is
// invalid, which is a build defect.
func Default() *Registry {
	r, err := Parse(configs.Banks)
	if err != nil {
		panic(fmt.Sprintf("embedded bank config: %v", err))
	}
	return r
}

// Parse decodes a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bank config: %w", err)
	}
	if len(f.Banks) == 0 {
		return nil, fmt.Errorf("parse bank config: no banks defined")
	}

	r := &Registry{banks: make(map[domain.BankID]*Bank, len(f.Banks))}
	for key, b := range f.Banks {
		id := domain.BankID(key)
		if !id.Valid() {
			return nil, fmt.Errorf("parse bank config: unknown bank %q", key)
		}
		if b == nil {
			b = &Bank{}
		}
		b.ID = id
		if b.DisplayName == "" {
			b.DisplayName = key
		}
		b.normalized = make(map[string]struct{}, len(b.RawColumns))
		for raw := range b.RawColumns {
			if n := colname.Normalize(raw); n != "" {
				b.normalized[n] = struct{}{}
			}
		}
		r.banks[id] = b
	}
	return r, nil
}

// Get returns the bank with the given id.
func (r *Registry) Get(id domain.BankID) (*Bank, bool) {
	b, ok := r.banks[id]
	return b, ok
}

// Banks returns the configured banks in domain.KnownBanks order.
func (r *Registry) Banks() []*Bank {
	out := make([]*Bank, 0, len(r.banks))
	for _, id := range domain.KnownBanks {
		if b, ok := r.banks[id]; ok {
			out = append(out, b)
		}
	}
	return out
}
