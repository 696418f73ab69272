// Package calculator derives invoice totals, retainer application and
// installment schedules from an in-memory invoice draft.
//
// Every function here is pure: results are recomputed from scratch on each
// call and nothing is cached between calls. Money is carried as
// decimal.Decimal and each derived figure is rounded half away from zero to
// two places where it is produced, so aggregates are sums of the rounded
// figures a customer actually sees.
package calculator

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept on every money figure.
const MoneyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)

	// DefaultVATRate is the fixed 15% VAT applied when no rate is supplied.
	DefaultVATRate = decimal.RequireFromString("0.15")
)

// Input is the slice of draft state the totals depend on.
type Input struct {
	Items         []LineItem
	DiscountType  string
	DiscountValue decimal.Decimal
	// VATRate is a fraction (0.15 = 15%). Nil selects DefaultVATRate.
	VATRate           *decimal.Decimal
	RetainerRequested decimal.Decimal
	RetainerAvailable decimal.Decimal
	Currency          string
}

// Totals is the derived totals object consumed by rendering and submission.
type Totals struct {
	Items           []LineItem      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ItemDiscounts   decimal.Decimal `json:"item_discounts"`
	InvoiceDiscount decimal.Decimal `json:"invoice_discount"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	Total           decimal.Decimal `json:"total"`
	AppliedRetainer decimal.Decimal `json:"applied_retainer"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	TotalInWords    string          `json:"total_in_words"`
}

// Calculate runs the full pipeline: line normalisation, item and invoice
// discounts, VAT, retainer application and amount in words. The input items
// are copied; the returned Items carry their recomputed LineTotal.
func Calculate(in Input) Totals {
	items := make([]LineItem, len(in.Items))
	copy(items, in.Items)

	subtotal := decimal.Zero
	itemDiscounts := decimal.Zero
	for i := range items {
		amounts := items[i].Amounts()
		items[i].LineTotal = amounts.Total
		subtotal = subtotal.Add(amounts.Gross)
		itemDiscounts = itemDiscounts.Add(amounts.Discount)
	}

	invoiceDiscount := applyDiscount(subtotal.Sub(itemDiscounts), in.DiscountType, in.DiscountValue)
	totalDiscount := itemDiscounts.Add(invoiceDiscount)
	taxable := subtotal.Sub(itemDiscounts).Sub(invoiceDiscount)

	rate := DefaultVATRate
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	vat := roundMoney(taxable.Mul(rate))
	total := taxable.Add(vat)

	applied := ApplyRetainer(total, in.RetainerRequested, in.RetainerAvailable)
	balance := BalanceDue(total, applied)

	return Totals{
		Items:           items,
		Subtotal:        subtotal,
		ItemDiscounts:   itemDiscounts,
		InvoiceDiscount: invoiceDiscount,
		TotalDiscount:   totalDiscount,
		TaxableAmount:   taxable,
		VATRate:         rate,
		VATAmount:       vat,
		Total:           total,
		AppliedRetainer: applied,
		BalanceDue:      balance,
		TotalInWords:    AmountInWords(total, in.Currency),
	}
}

// ApplyRetainer caps the requested retainer amount by the available balance
// and by the invoice total. Negative requests apply nothing.
func ApplyRetainer(total, requested, available decimal.Decimal) decimal.Decimal {
	if requested.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	applied := roundMoney(requested)
	if available.LessThan(applied) {
		applied = available
	}
	if total.LessThan(applied) {
		applied = total
	}
	if applied.IsNegative() {
		return decimal.Zero
	}
	return applied
}

// BalanceDue is total minus the applied retainer, floored at zero.
func BalanceDue(total, applied decimal.Decimal) decimal.Decimal {
	balance := total.Sub(applied)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
