package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/domain"
)

func TestByFilename(t *testing.T) {
	d := NewDetector(bankconfig.Default())
	tests := []struct {
		name   string
		want   domain.BankID
		method string
	}{
		{"Akbank_2026-01_POS.xlsx", domain.BankAkbank, DetectedByKeyword},
		{"VAKIFBANK_OCAK.csv", domain.BankVakifbank, DetectedByKeyword},
		{"Vakıf Bank Ekstre.csv", domain.BankVakifbank, DetectedByKeyword},
		{"3. Yapı Kredi Ocak.xlsx", domain.BankYKB, DetectedByKeyword},
		{"İşbank POS.xlsx", domain.BankIsbank, DetectedByKeyword},
		{"Halk_2026.xlsx", domain.BankHalkbank, DetectedByKeyword},
		{"QNB-ocak.xlsx", domain.BankQNB, DetectedByKeyword},
		{"ziraat bankasi.xls", domain.BankZiraat, DetectedByKeyword},
		{"pos_export_2026_01.csv", domain.BankUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, method := d.ByFilename(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.method, method)
		})
	}
}

func TestByFilename_ConfigPattern(t *testing.T) {
	reg, err := bankconfig.Parse([]byte(`
banks:
  garanti:
    display_name: "Bonus POS"
    file_pattern: "gbt_*.xlsx"
    raw_columns: {Tutar: gross_amount}
`))
	assert.NoError(t, err)
	d := NewDetector(reg)

	got, method := d.ByFilename("GBT_2026_01.xlsx")
	assert.Equal(t, domain.BankGaranti, got)
	assert.Equal(t, DetectedByPattern, method)

	got, _ = d.ByFilename("bonus pos ocak.xlsx")
	assert.Equal(t, domain.BankGaranti, got)
}

func TestByHeaders_VakifbankFallback(t *testing.T) {
	d := NewDetector(bankconfig.Default())
	headers := []string{
		"ISLEM_TARIHI", "HESABA_GECIS_TARIHI", "ISLEM_TIPI", "BRUT_TUTAR",
		"KOMISYON_ORANI", "KOMISYON_TUTARI", "NET_TUTAR", "TAKSIT_SAYISI",
		"KART_TIPI", "PROVIZYON_NO", "UYE_ISYERI_NO",
	}
	assert.Equal(t, domain.BankVakifbank, d.ByHeaders(headers))

	// drift in case and separators does not matter
	assert.Equal(t, domain.BankVakifbank, d.ByHeaders([]string{"Hesaba Geçiş Tarihi", "brut-tutar", "Üye İşyeri No"}))
}

func TestByHeaders_BelowThreshold(t *testing.T) {
	d := NewDetector(bankconfig.Default())
	assert.Equal(t, domain.BankUnknown, d.ByHeaders([]string{"UYE_ISYERI_NO", "Aciklama"}))
	assert.Equal(t, domain.BankUnknown, d.ByHeaders([]string{"foo", "bar"}))
	assert.Equal(t, domain.BankUnknown, d.ByHeaders(nil))
}

func TestByHeaders_YKB(t *testing.T) {
	d := NewDetector(bankconfig.Default())
	got := d.ByHeaders([]string{"Yükleme Tarihi", "Mesaj Tipi", "Katkı Payı TL", "Taksitli İşlem Komisyonu", "İşlem Tutarı"})
	assert.Equal(t, domain.BankYKB, got)
}

func TestInferBankName(t *testing.T) {
	assert.Equal(t, "AKBANK T.A.S.", InferBankName("1. akbank rapor.xlsx"))
	assert.Equal(t, "T. VAKIFLAR BANKASI T.A.O.", InferBankName("/data/VakıfBank.csv"))
	assert.Equal(t, "Denizbank Ocak", InferBankName("12. Denizbank Ocak.xlsx"))
}
