package bankconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashflow/posrecon/internal/domain"
)

func TestDefault_HasAllBanks(t *testing.T) {
	r := Default()
	banks := r.Banks()
	require.Len(t, banks, len(domain.KnownBanks))
	for i, b := range banks {
		assert.Equal(t, domain.KnownBanks[i], b.ID)
		assert.NotEmpty(t, b.DisplayName)
		assert.NotEmpty(t, b.RawColumns, "bank %s", b.ID)
	}
}

func TestDefault_Vakifbank(t *testing.T) {
	b, ok := Default().Get(domain.BankVakifbank)
	require.True(t, ok)
	assert.Equal(t, ';', b.Comma())
	assert.Equal(t, "iso-8859-9", b.Encoding)
	assert.Equal(t, "02/01/2006", b.DateLayout)
	assert.Equal(t, "Taksit", b.TransactionTypeMap["TKS"])
	assert.Equal(t, "Tek Çekim", b.TransactionTypeMap["TEK"])
	assert.Contains(t, b.NormalizedColumns(), "hesaba gecis tarihi")
	assert.Contains(t, b.StandardColumns(), "gross_amount")
}

func TestDefault_YKBSharesStandardColumn(t *testing.T) {
	b, _ := Default().Get(domain.BankYKB)
	count := 0
	for _, std := range b.StandardColumns() {
		if std == "installment_count" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("banks: {}"))
	assert.Error(t, err)

	_, err = Parse([]byte("banks:\n  denizbank:\n    display_name: X\n"))
	assert.ErrorContains(t, err, "denizbank")

	_, err = Parse([]byte("banks: ["))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banks.yaml")
	yml := "banks:\n  akbank:\n    raw_columns:\n      PROVIZYON_TUTAR: gross_amount\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	b, ok := r.Get(domain.BankAkbank)
	require.True(t, ok)
	assert.Equal(t, "akbank", b.DisplayName)
	assert.Equal(t, ',', b.Comma())
	_, ok = r.Get(domain.BankGaranti)
	assert.False(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
