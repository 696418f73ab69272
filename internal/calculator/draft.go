package calculator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTerms enum constants
const (
	TermsDueOnReceipt = "due_on_receipt"
	TermsNet7         = "net_7"
	TermsNet15        = "net_15"
	TermsNet30        = "net_30"
	TermsNet45        = "net_45"
	TermsNet60        = "net_60"
	TermsNet90        = "net_90"
	TermsEndOfMonth   = "eom"
)

var termDays = map[string]int{
	TermsDueOnReceipt: 0,
	TermsNet7:         7,
	TermsNet15:        15,
	TermsNet30:        30,
	TermsNet45:        45,
	TermsNet60:        60,
	TermsNet90:        90,
}

// InstallmentPlan describes an optional split of the balance due.
type InstallmentPlan struct {
	Count     int       `json:"count"`
	Frequency string    `json:"frequency"`
	StartDate time.Time `json:"start_date"`
}

// Draft is an invoice being edited: header fields, lines and the
// discount, retainer and installment settings.
type Draft struct {
	ClientID        string
	ClientName      string
	ClientVATNumber string
	IssueDate       time.Time
	DueDate         *time.Time
	PaymentTerms    string
	Currency        string
	Items           []LineItem
	DiscountType    string
	DiscountValue   decimal.Decimal
	VATRate         *decimal.Decimal
	RetainerID      string
	RetainerAmount  decimal.Decimal
	Installments    *InstallmentPlan
	Notes           string
}

// Input projects the draft onto calculator input. available is the balance
// of the retainer the draft draws from.
func (d Draft) Input(available decimal.Decimal) Input {
	return Input{
		Items:             d.Items,
		DiscountType:      d.DiscountType,
		DiscountValue:     d.DiscountValue,
		VATRate:           d.VATRate,
		RetainerRequested: d.RetainerAmount,
		RetainerAvailable: available,
		Currency:          d.Currency,
	}
}

// Result bundles everything derived from a draft.
type Result struct {
	Totals       Totals        `json:"totals"`
	DueDate      time.Time     `json:"due_date"`
	Installments []Installment `json:"installments,omitempty"`
}

// Evaluate computes totals, the effective due date and, when a plan is set,
// the installment schedule over the balance due.
func (d Draft) Evaluate(available decimal.Decimal) (Result, error) {
	totals := Calculate(d.Input(available))

	due, err := d.EffectiveDueDate()
	if err != nil {
		return Result{}, err
	}

	res := Result{Totals: totals, DueDate: due}
	if d.Installments != nil {
		start := d.Installments.StartDate
		if start.IsZero() {
			start = due
		}
		res.Installments, err = Schedule(totals.BalanceDue, d.Installments.Count, d.Installments.Frequency, start)
		if err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// EffectiveDueDate is the explicit due date, or one derived from the terms.
func (d Draft) EffectiveDueDate() (time.Time, error) {
	if d.DueDate != nil && !d.DueDate.IsZero() {
		return *d.DueDate, nil
	}
	return DueDateForTerms(d.IssueDate, d.PaymentTerms)
}

// DueDateForTerms derives a due date from the issue date. Empty terms default
// to net 30; "eom" is the last day of the issue month.
func DueDateForTerms(issue time.Time, terms string) (time.Time, error) {
	if terms == "" {
		terms = TermsNet30
	}
	if terms == TermsEndOfMonth {
		y, m, _ := issue.Date()
		return time.Date(y, m+1, 0, 0, 0, 0, 0, issue.Location()), nil
	}
	days, ok := termDays[terms]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown payment terms %q", terms)
	}
	return issue.AddDate(0, 0, days), nil
}

// ValidTerms reports whether terms is a known payment term (empty allowed).
func ValidTerms(terms string) bool {
	if terms == "" || terms == TermsEndOfMonth {
		return true
	}
	_, ok := termDays[terms]
	return ok
}
