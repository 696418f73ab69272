// Package validation holds the pre-submit checklist for invoice drafts. It
// never fails: problems come back as a list of field/message pairs.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"billing/internal/calculator"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// FieldError is one problem found in a draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the ordered list of problems; empty means the draft may be submitted.
type Result []FieldError

func (r Result) Empty() bool { return len(r) == 0 }

func (r *Result) add(field, message string) {
	*r = append(*r, FieldError{Field: field, Message: message})
}

// Fields returns the offending field paths in order.
func (r Result) Fields() []string {
	out := make([]string, 0, len(r))
	for _, e := range r {
		out = append(out, e.Field)
	}
	return out
}

var vatNumberPattern = regexp.MustCompile(`^3\d{13}3$`)

// ValidVATNumber reports whether s is a 15-digit VAT registration number
// that starts and ends with 3.
func ValidVATNumber(s string) bool {
	return vatNumberPattern.MatchString(strings.TrimSpace(s))
}

var hundred = decimal.NewFromInt(100)

// ValidateDraft runs every pre-submit check against the draft.
func ValidateDraft(d calculator.Draft) Result {
	var r Result

	if strings.TrimSpace(d.ClientID) == "" {
		r.add("client_id", "client is required")
	}
	if d.IssueDate.IsZero() {
		r.add("issue_date", "issue date is required")
	}
	if d.DueDate != nil && !d.DueDate.IsZero() && !d.IssueDate.IsZero() && d.DueDate.Before(d.IssueDate) {
		r.add("due_date", "due date cannot be before the issue date")
	}
	if !calculator.ValidTerms(d.PaymentTerms) {
		r.add("payment_terms", "unknown payment terms")
	}
	if d.ClientVATNumber != "" && !ValidVATNumber(d.ClientVATNumber) {
		r.add("client_vat_number", "VAT number must be 15 digits starting and ending with 3")
	}

	billable := 0
	for i, item := range d.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if !lo.Contains(calculator.LineTypes, item.Type) {
			r.add(prefix+".type", "unknown line type")
			continue
		}
		if !item.IsBillable() {
			continue
		}
		billable++
		if strings.TrimSpace(item.Description) == "" {
			r.add(prefix+".description", "description is required")
		}
		if !item.Quantity.IsPositive() {
			r.add(prefix+".quantity", "quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			r.add(prefix+".unit_price", "unit price cannot be negative")
		}
		checkDiscount(&r, prefix+".discount_value", item.DiscountType, item.DiscountValue)
	}
	if billable == 0 {
		r.add("items", "at least one billable line is required")
	}

	checkDiscount(&r, "discount_value", d.DiscountType, d.DiscountValue)

	if d.RetainerAmount.IsNegative() {
		r.add("retainer_amount", "retainer amount cannot be negative")
	}
	if d.RetainerAmount.IsPositive() && strings.TrimSpace(d.RetainerID) == "" {
		r.add("retainer_id", "retainer is required when applying a retainer amount")
	}

	if p := d.Installments; p != nil {
		if p.Count < calculator.MinInstallments || p.Count > calculator.MaxInstallments {
			r.add("installments.count", fmt.Sprintf("installments must be between %d and %d", calculator.MinInstallments, calculator.MaxInstallments))
		}
		if !calculator.ValidFrequency(p.Frequency) {
			r.add("installments.frequency", "frequency must be weekly, biweekly or monthly")
		}
	}

	return r
}

func checkDiscount(r *Result, field, discountType string, value decimal.Decimal) {
	switch discountType {
	case "":
		return
	case calculator.DiscountPercentage:
		if value.IsNegative() || value.GreaterThan(hundred) {
			r.add(field, "percentage discount must be between 0 and 100")
		}
	case calculator.DiscountFixed:
		if value.IsNegative() {
			r.add(field, "fixed discount cannot be negative")
		}
	default:
		r.add(field, "discount type must be percentage or fixed")
	}
}
