package ingestion

import (
	"math"
	"strings"

	"github.com/cashflow/posrecon/internal/bankconfig"
	"github.com/cashflow/posrecon/internal/colname"
	"github.com/cashflow/posrecon/internal/domain"
)

// Transformer turns a mapped frame into a typed batch, applying one bank's
// export quirks.
type Transformer interface {
	Normalize(f *Frame, bank *bankconfig.Bank) *Batch
}

var transformers = map[domain.BankID]Transformer{
	domain.BankZiraat:    ziraatTransform{},
	domain.BankAkbank:    akbankTransform{},
	domain.BankGaranti:   garantiTransform{},
	domain.BankHalkbank:  halkbankTransform{},
	domain.BankQNB:       qnbTransform{},
	domain.BankVakifbank: vakifbankTransform{},
	domain.BankYKB:       ykbTransform{},
	domain.BankIsbank:    genericTransform{},
}

// TransformerFor returns the transform for a bank. Unknown banks get the
// generic transform.
func TransformerFor(id domain.BankID) Transformer {
	if t, ok := transformers[id]; ok {
		return t
	}
	return genericTransform{}
}

// genericTransform relies on column mapping alone.
type genericTransform struct{}

func (genericTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	return baseBatch(f, bank)
}

// Ziraat: rate is a percentage, blank installments are single payments,
// refund rows carry "ade" in their type text.
type ziraatTransform struct{}

func (ziraatTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	scale(b.Rates, 0.01)
	for i, typ := range b.Types {
		if colname.ContainsFold(typ, "ade") {
			b.Categories[i] = domain.CategoryRefund
		}
	}
	return b
}

// Akbank: the primary commission column is usually 0; the real amount is
// in the alternate column and the rate is taken from the amounts.
type akbankTransform struct{}

func (akbankTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	if f.Has(ColCommissionAlt) {
		b.Commission = f.Floats(ColCommissionAlt)
	}
	deriveRates(b)
	return b
}

// Garanti: penalty refunds and service fees are categorized and kept,
// amounts are locale strings, the rate is taken from the amounts.
type garantiTransform struct{}

func (garantiTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	for i, typ := range b.Types {
		switch strings.ToUpper(typ) {
		case "PNLT":
			b.Categories[i] = domain.CategoryPenalty
		case "PUCRT":
			b.Categories[i] = domain.CategoryService
		}
	}
	deriveRates(b)
	return b
}

// Halkbank: rate is a percentage; installments are inferred from the type
// text when the export has no installment column.
type halkbankTransform struct{}

var halkbankSingle = map[string]bool{"pesin": true, "tek": true}

func (halkbankTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	scale(b.Rates, 0.01)
	if !f.Has(ColInstallmentCount) && f.Has(ColTransactionType) {
		for i, typ := range b.Types {
			if halkbankSingle[colname.Fold(typ)] {
				b.Installments[i] = 1
			} else {
				b.Installments[i] = 2
			}
		}
	}
	return b
}

// QNB: amounts are stored as absolute values since refunds are told apart
// by type, not sign.
type qnbTransform struct{}

func (qnbTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	abs(b.Gross)
	abs(b.Commission)
	percentToDecimal(b.Rates)
	if !f.Has(ColInstallmentCount) && f.Has(ColTransactionType) {
		for i, typ := range b.Types {
			folded := colname.Fold(typ)
			if strings.Contains(folded, "taksitsiz") || strings.Contains(folded, "pes") {
				b.Installments[i] = 1
			} else {
				b.Installments[i] = 2
			}
		}
	}
	return b
}

// Vakıfbank: fixed-width amounts, percentage rates and coded transaction
// types remapped through the bank config.
type vakifbankTransform struct{}

func (vakifbankTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)
	percentToDecimal(b.Rates)
	if bank != nil && len(bank.TransactionTypeMap) > 0 && f.Has(ColTransactionType) {
		for i, typ := range b.Types {
			b.TypesOriginal[i] = typ
			if mapped, ok := bank.TransactionTypeMap[typ]; ok {
				b.Types[i] = mapped
			}
		}
	}
	return b
}

// Yapı Kredi: commission is installment commission plus contribution fee,
// refunds are flagged by message type and flip both amounts negative.
type ykbTransform struct{}

func (ykbTransform) Normalize(f *Frame, bank *bankconfig.Bank) *Batch {
	b := baseBatch(f, bank)

	refund := make([]bool, b.Len)
	hasMessage := f.Has(ColMessageType)
	if hasMessage {
		for i, m := range f.Strings(ColMessageType) {
			refund[i] = colname.ContainsFold(m, "iade")
		}
	}

	taksitli := f.Floats(ColCommissionTaksitli)
	katki := f.Floats(ColContributionFee)
	for i := 0; i < b.Len; i++ {
		c := math.Abs(taksitli[i] + katki[i])
		if refund[i] {
			c = -c
			b.Gross[i] = -math.Abs(b.Gross[i])
		}
		b.Commission[i] = c
	}
	deriveRates(b)

	if f.Has(ColInstallmentCount) {
		for i, v := range f.Raw(ColInstallmentCount) {
			b.Installments[i] = splitInstallment(v)
		}
	}

	for i := range b.Categories {
		switch {
		case hasMessage && refund[i]:
			b.Categories[i] = domain.CategoryRefund
		case !hasMessage && colname.ContainsFold(b.Types[i], "ade"):
			b.Categories[i] = domain.CategoryRefund
		}
	}
	return b
}
