package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/cashflow/posrecon/internal/domain"
	"github.com/cashflow/posrecon/internal/numeric"
	"github.com/cashflow/posrecon/internal/ratetable"
)

type kind int

const (
	sale kind = iota
	refund
	cancel
)

type sample struct {
	date       time.Time
	settle     time.Time
	kind       kind
	inst       int
	gross      float64
	rate       float64
	commission float64
	card       string
	ref        string
}

var cards = []string{"BONUS", "WORLD", "AXESS", "MAXIMUM", "PARAF", "CARDFINANS", "BANKKART"}

func main() {
	out := flag.String("out", "data/raw", "Output directory")
	rows := flag.Int("rows", 60, "Rows per bank")
	month := flag.String("month", "2026-01", "Month of the generated transactions (YYYY-MM)")
	seed := flag.Int64("seed", 42, "Random seed")
	flag.Parse()

	start, err := time.Parse("2006-01", *month)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -month: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	rates := ratetable.Default()

	for _, bank := range domain.KnownBanks {
		samples := makeSamples(rng, rates, bank, start, *rows)
		dir := filepath.Join(*out, string(bank), *month)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic(err)
		}

		var path string
		if bank == domain.BankVakifbank {
			path = filepath.Join(dir, fmt.Sprintf("vakifbank_%s.csv", *month))
			writeVakifbankCSV(path, samples)
		} else {
			path = filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", filePrefix(bank), *month))
			writeXLSX(path, rowsFor(bank, samples))
		}
		fmt.Printf("Generated %d %s rows -> %s\n", len(samples), bank, path)
	}

	fmt.Println("Test data generation complete.")
}

func filePrefix(bank domain.BankID) string {
	if bank == domain.BankIsbank {
		return "isbank"
	}
	return string(bank)
}

// contractInstallments lists the installment counts with a contractual rate.
func contractInstallments(rates *ratetable.Snapshot, bank domain.BankID) []int {
	for _, b := range rates.Banks() {
		if b.Key != string(bank) {
			continue
		}
		out := make([]int, 0, len(b.Rates))
		for n := range b.Rates {
			out = append(out, n)
		}
		sort.Ints(out)
		return out
	}
	return []int{1}
}

func makeSamples(rng *rand.Rand, rates *ratetable.Snapshot, bank domain.BankID, start time.Time, n int) []sample {
	installments := contractInstallments(rates, bank)
	if bank == domain.BankHalkbank || bank == domain.BankQNB {
		// these exports only say single payment or installment
		installments = []int{1, 2}
	}
	days := start.AddDate(0, 1, 0).Sub(start).Hours() / 24

	out := make([]sample, 0, n)
	for i := 0; i < n; i++ {
		s := sample{
			date: start.AddDate(0, 0, rng.Intn(int(days))),
			inst: installments[rng.Intn(len(installments))],
			card: cards[rng.Intn(len(cards))],
			ref:  fmt.Sprintf("%s%06d", strings.ToUpper(string(bank))[:2], i+1),
		}
		s.settle = s.date.AddDate(0, 0, 1+s.inst)
		s.gross = math.Round((50+rng.Float64()*9950)*100) / 100
		s.rate, _ = rates.Lookup(bank, "", s.inst)

		roll := rng.Float64()
		switch {
		case roll < 0.03:
			s.kind = cancel
		case roll < 0.08:
			s.kind = refund
			s.gross = -s.gross
		case roll < 0.14:
			// bank charged more than the contract
			s.rate += 0.01
		}
		s.commission = numeric.Round(s.gross*s.rate, 2)
		if roll >= 0.14 && roll < 0.17 {
			// reported commission disagrees with the reported rate
			s.commission = numeric.Round(s.commission*1.05, 2)
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

func (s sample) net() float64 { return numeric.Round(s.gross-s.commission, 2) }

func (s sample) pct() float64 { return numeric.Round(s.rate*100, 2) }

func rowsFor(bank domain.BankID, samples []sample) [][]any {
	var header []any
	var row func(s sample) []any

	iso := func(t time.Time) string { return t.Format("2006-01-02") }

	switch bank {
	case domain.BankZiraat:
		header = []any{"İşlem Tarihi", "Hesaba Geçiş Tarihi", "İşlem Tipi", "İşlem Tutarı", "Komisyon Oranı",
			"Komisyon Tutarı", "Net Tutar", "Taksit Sayısı", "Kart Tipi", "Provizyon No"}
		row = func(s sample) []any {
			typ := map[kind]string{sale: "Satış", refund: "E-ticaret Satış İade", cancel: "İPTAL"}[s.kind]
			if s.kind == sale && s.inst > 1 {
				typ = "Çok Taksitli Satış"
			}
			var inst any = s.inst
			if s.inst == 1 {
				inst = ""
			}
			return []any{iso(s.date), iso(s.settle), typ, s.gross, s.pct(), s.commission, s.net(), inst, s.card, s.ref}
		}
	case domain.BankAkbank:
		header = []any{"ISLEM_TARIHI", "VALOR_TARIHI", "ISLEM_TIPI", "PROVIZYON_TUTAR", "KOMISYON_TUTAR",
			"EO_KES_TUTAR", "NET_TUTAR", "TAKSIT_SAYISI", "KART_MARKASI", "PROVIZYON_KODU"}
		row = func(s sample) []any {
			typ := map[kind]string{sale: "SATIS", refund: "IADE", cancel: "IPTAL"}[s.kind]
			return []any{iso(s.date), iso(s.settle), typ, s.gross, 0.0, s.commission, s.net(), s.inst, s.card, s.ref}
		}
	case domain.BankGaranti:
		header = []any{"Islem Tarihi", "Valor", "Islem Kodu", "Brut Tutar", "Komisyon", "Net Tutar",
			"Odul Kesintisi", "Servis Kesintisi", "Taksit", "Kart Tipi", "Referans No"}
		row = func(s sample) []any {
			typ := map[kind]string{sale: "SATIS", refund: "PNLT", cancel: "IPTAL"}[s.kind]
			reward := numeric.Round(math.Abs(s.gross)*0.001, 2)
			return []any{s.date.Format("02.01.2006"), s.settle.Format("02.01.2006"), typ, s.gross, s.commission,
				s.net(), reward, 0.0, s.inst, s.card, s.ref}
		}
	case domain.BankHalkbank:
		header = []any{"İşlem Tarihi", "Valör Tarihi", "İşlem Tipi", "Brüt Tutar", "Komisyon Yüzdesi",
			"Komisyon Tutarı", "Alacak Tutarı", "Kart Türü"}
		row = func(s sample) []any {
			typ := "Peşin"
			if s.inst > 1 {
				typ = "Taksitli"
			}
			if s.kind == cancel {
				typ = "İPTAL"
			}
			return []any{iso(s.date), iso(s.settle), typ, s.gross, s.pct(), s.commission, s.net(), s.card}
		}
	case domain.BankQNB:
		header = []any{"İşlem Tarihi", "Ödeme Tarihi", "Taksit Tipi", "Çözülmüş Alacak Tutarı", "Komisyon Oranı",
			"Komisyon Tutarı", "Net Alacak", "Kart Programı"}
		row = func(s sample) []any {
			typ := "Taksitsiz"
			if s.inst > 1 {
				typ = "Taksitli"
			}
			if s.kind == cancel {
				typ = "BAŞARISIZ"
			}
			return []any{iso(s.date), iso(s.settle), typ, s.gross, s.pct(), s.commission, s.net(), s.card}
		}
	case domain.BankYKB:
		header = []any{"Yükleme Tarihi", "Ödeme Tarihi", "İşlem Tipi", "Mesaj Tipi", "İşlem Tutarı",
			"Taksitli İşlem Komisyonu", "Katkı Payı TL", "Taksit Sayısı", "Kart Tipi"}
		row = func(s sample) []any {
			typ := map[kind]string{sale: "Satış", refund: "Satış", cancel: "İPTAL"}[s.kind]
			msg := "Satış"
			if s.kind == refund {
				msg = "İade"
			}
			fee := numeric.Round(math.Abs(s.commission)*0.1, 2)
			return []any{iso(s.date), iso(s.settle), typ, msg, math.Abs(s.gross),
				math.Abs(s.commission) - fee, fee, fmt.Sprintf("%d/1", s.inst), s.card}
		}
	case domain.BankIsbank:
		header = []any{"İşlem Tarihi", "Valör", "İşlem Türü", "Tutar", "Komisyon Oranı", "Komisyon", "Net", "Taksit"}
		row = func(s sample) []any {
			typ := map[kind]string{sale: "SATIŞ", refund: "İADE", cancel: "İPTAL"}[s.kind]
			return []any{iso(s.date), iso(s.settle), typ, s.gross, s.rate, s.commission, s.net(), s.inst}
		}
	}

	out := [][]any{header}
	for _, s := range samples {
		out = append(out, row(s))
	}
	return out
}

func writeXLSX(path string, rows [][]any) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			panic(err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			panic(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		panic(err)
	}
}

func writeVakifbankCSV(path string, samples []sample) {
	var b strings.Builder
	b.WriteString("ISLEM_TARIHI;HESABA_GECIS_TARIHI;ISLEM_TIPI;BRUT_TUTAR;KOMISYON_ORANI;KOMISYON_TUTARI;NET_TUTAR;TAKSIT_SAYISI;KART_TIPI;PROVIZYON_NO;UYE_ISYERI_NO\n")
	for _, s := range samples {
		typ := "TEK"
		if s.inst > 1 {
			typ = "TKS"
		}
		switch s.kind {
		case refund:
			typ = "IAD"
		case cancel:
			typ = "İPTAL"
		}
		fields := []string{
			s.date.Format("02/01/2006"),
			s.settle.Format("02/01/2006"),
			typ,
			numeric.FormatFixedWidth(s.gross),
			strings.Replace(strconv.FormatFloat(s.pct(), 'f', 2, 64), ".", ",", 1),
			numeric.FormatFixedWidth(s.commission),
			numeric.FormatFixedWidth(s.net()),
			strconv.Itoa(s.inst),
			"ŞAHSİ " + s.card,
			s.ref,
			"000123456",
		}
		b.WriteString(strings.Join(fields, ";"))
		b.WriteString("\n")
	}

	data, err := charmap.ISO8859_9.NewEncoder().String(b.String())
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		panic(err)
	}
}
