package calculator

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineType enum constants
const (
	LineTypeTime     = "time"
	LineTypeExpense  = "expense"
	LineTypeFlatFee  = "flat_fee"
	LineTypeProduct  = "product"
	LineTypeDiscount = "discount"
	LineTypeSubtotal = "subtotal"
	LineTypeComment  = "comment"
)

// DiscountType enum constants. An empty discount type means no discount.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// LineTypes lists every accepted line type in display order.
var LineTypes = []string{
	LineTypeTime, LineTypeExpense, LineTypeFlatFee, LineTypeProduct,
	LineTypeDiscount, LineTypeSubtotal, LineTypeComment,
}

// LineItem is one editable row of an invoice draft.
type LineItem struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	LineTotal     decimal.Decimal `json:"line_total"`
	Taxable       bool            `json:"taxable"`
}

// LineAmounts is the derived money breakdown of a single line.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// NewLineItem returns the defaults used when a line is added to a draft.
func NewLineItem(lineType string, now time.Time) LineItem {
	if lineType == "" {
		lineType = LineTypeTime
	}
	return LineItem{
		ID:            uuid.NewString(),
		Type:          lineType,
		Date:          now,
		Quantity:      decimal.NewFromInt(1),
		UnitPrice:     decimal.Zero,
		DiscountType:  DiscountPercentage,
		DiscountValue: decimal.Zero,
		LineTotal:     decimal.Zero,
		Taxable:       true,
	}
}

// IsBillable reports whether the line contributes money. Comment and subtotal
// rows are informational.
func (l LineItem) IsBillable() bool {
	return IsBillableType(l.Type)
}

// IsBillableType reports whether lines of the given type contribute money.
func IsBillableType(lineType string) bool {
	return lineType != LineTypeComment && lineType != LineTypeSubtotal
}

// Amounts computes gross, discount and total for the line. Inputs are not
// range-checked: a negative quantity produces a negative total.
func (l LineItem) Amounts() LineAmounts {
	if !l.IsBillable() {
		return LineAmounts{Gross: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero}
	}
	gross := roundMoney(l.Quantity.Mul(l.UnitPrice))
	discount := applyDiscount(gross, l.DiscountType, l.DiscountValue)
	return LineAmounts{
		Gross:    gross,
		Discount: discount,
		Total:    gross.Sub(discount),
	}
}

// Recompute refreshes LineTotal after any field edit.
func (l *LineItem) Recompute() {
	l.LineTotal = l.Amounts().Total
}

// applyDiscount returns the discount amount for base under the given rule.
func applyDiscount(base decimal.Decimal, discountType string, value decimal.Decimal) decimal.Decimal {
	switch discountType {
	case DiscountPercentage:
		return roundMoney(base.Mul(value).Div(hundred))
	case DiscountFixed:
		return roundMoney(value)
	default:
		return decimal.Zero
	}
}
