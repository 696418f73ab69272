package service

import (
	"fmt"
	"strings"
	"time"

	"billing/internal/calculator"
	"billing/internal/model"
	"billing/internal/validation"

	"github.com/shopspring/decimal"
)

// --- Requests ---

type LineItemRequest struct {
	Type          string `json:"type"`
	Date          string `json:"date"` // YYYY-MM-DD, defaults to the issue date
	Description   string `json:"description"`
	Quantity      string `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	Taxable       *bool  `json:"taxable"`
}

type InstallmentPlanRequest struct {
	Count     int    `json:"count"`
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"` // YYYY-MM-DD, defaults to the due date
}

// InvoiceDraftRequest is the editable invoice form. Money fields are decimal
// strings; malformed values are reported through the validation checklist.
type InvoiceDraftRequest struct {
	ClientID        string                  `json:"client_id"`
	ClientName      string                  `json:"client_name"`
	ClientVATNumber string                  `json:"client_vat_number" binding:"omitempty,vatnumber"`
	IssueDate       string                  `json:"issue_date"`
	DueDate         string                  `json:"due_date"`
	PaymentTerms    string                  `json:"payment_terms"`
	Currency        string                  `json:"currency"`
	Items           []LineItemRequest       `json:"items"`
	DiscountType    string                  `json:"discount_type"`
	DiscountValue   string                  `json:"discount_value"`
	RetainerID      string                  `json:"retainer_id"`
	RetainerAmount  string                  `json:"retainer_amount"`
	Installments    *InstallmentPlanRequest `json:"installments"`
	Notes           string                  `json:"notes"`
}

type ReviewRequest struct {
	Note string `json:"note"`
}

type RejectRequest struct {
	Note string `json:"note" binding:"required"`
}

type VoidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type PaymentRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"omitempty,oneof=cash bank_transfer card cheque other"`
	Reference string `json:"reference"`
	PaidAt    string `json:"paid_at"` // YYYY-MM-DD, defaults to today
	Note      string `json:"note"`
}

type InvoiceFilter struct {
	Status    string
	ClientID  string
	InvoiceNo string
	Page      int
	Limit     int
}

// --- Responses ---

type LineItemResponse struct {
	ID            string `json:"id"`
	Position      int    `json:"position"`
	Type          string `json:"type"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Quantity      string `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
	LineTotal     string `json:"line_total"`
	Taxable       bool   `json:"taxable"`
}

type InstallmentResponse struct {
	Sequence int    `json:"sequence"`
	DueDate  string `json:"due_date"`
	Amount   string `json:"amount"`
}

type PaymentResponse struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	PaidAt    string `json:"paid_at"`
	Note      string `json:"note"`
}

type TotalsResponse struct {
	Subtotal        string `json:"subtotal"`
	ItemDiscounts   string `json:"item_discounts"`
	InvoiceDiscount string `json:"invoice_discount"`
	TotalDiscount   string `json:"total_discount"`
	TaxableAmount   string `json:"taxable_amount"`
	VATRate         string `json:"vat_rate"`
	VATAmount       string `json:"vat_amount"`
	Total           string `json:"total"`
	AppliedRetainer string `json:"applied_retainer"`
	BalanceDue      string `json:"balance_due"`
	TotalInWords    string `json:"total_in_words"`
}

// PreviewResponse is the live form state: derived figures plus the checklist.
type PreviewResponse struct {
	Valid        bool                  `json:"valid"`
	Problems     validation.Result     `json:"problems"`
	Items        []LineItemResponse    `json:"items"`
	Totals       TotalsResponse        `json:"totals"`
	DueDate      string                `json:"due_date,omitempty"`
	Installments []InstallmentResponse `json:"installments"`
}

type InvoiceResponse struct {
	ID                   string                `json:"id"`
	InvoiceNo            string                `json:"invoice_no"`
	Status               string                `json:"status"`
	ClientID             string                `json:"client_id"`
	ClientName           string                `json:"client_name"`
	ClientVATNumber      string                `json:"client_vat_number"`
	IssueDate            string                `json:"issue_date"`
	DueDate              string                `json:"due_date"`
	PaymentTerms         string                `json:"payment_terms"`
	Currency             string                `json:"currency"`
	TaxRuleID            *string               `json:"tax_rule_id"`
	DiscountType         string                `json:"discount_type"`
	DiscountValue        string                `json:"discount_value"`
	Totals               TotalsResponse        `json:"totals"`
	RetainerID           *string               `json:"retainer_id"`
	AmountPaid           string                `json:"amount_paid"`
	InstallmentCount     int                   `json:"installment_count"`
	InstallmentFrequency string                `json:"installment_frequency"`
	SubmittedAt          *string               `json:"submitted_at"`
	ApprovedBy           *string               `json:"approved_by"`
	ApproverName         string                `json:"approver_name,omitempty"`
	ApprovedAt           *string               `json:"approved_at"`
	ReviewNote           string                `json:"review_note"`
	VoidReason           string                `json:"void_reason"`
	Notes                string                `json:"notes"`
	CreatedAt            string                `json:"created_at"`
	UpdatedAt            string                `json:"updated_at"`
	Items                []LineItemResponse    `json:"items,omitempty"`
	Installments         []InstallmentResponse `json:"installments,omitempty"`
	Payments             []PaymentResponse     `json:"payments,omitempty"`
}

type InvoiceListResponse struct {
	Items []InvoiceResponse `json:"items"`
	Total int64             `json:"total"`
}

// --- Request conversion ---

// toDraft converts the form into a calculator draft. Values that cannot be
// parsed are reported as problems and left at their defaults.
func (r InvoiceDraftRequest) toDraft(today time.Time, defaultCurrency string) (calculator.Draft, validation.Result) {
	var problems validation.Result
	add := func(field, msg string) { problems = append(problems, validation.FieldError{Field: field, Message: msg}) }

	date := func(field, s string) time.Time {
		if s == "" {
			return time.Time{}
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			add(field, "invalid date format (expected YYYY-MM-DD)")
			return time.Time{}
		}
		return t
	}
	amount := func(field, s string, def decimal.Decimal) decimal.Decimal {
		if strings.TrimSpace(s) == "" {
			return def
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			add(field, "must be a number")
			return def
		}
		return d
	}

	currency := strings.ToUpper(strings.TrimSpace(r.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	d := calculator.Draft{
		ClientID:        strings.TrimSpace(r.ClientID),
		ClientName:      r.ClientName,
		ClientVATNumber: strings.TrimSpace(r.ClientVATNumber),
		IssueDate:       date("issue_date", r.IssueDate),
		PaymentTerms:    r.PaymentTerms,
		Currency:        currency,
		DiscountType:    r.DiscountType,
		DiscountValue:   amount("discount_value", r.DiscountValue, decimal.Zero),
		RetainerID:      strings.TrimSpace(r.RetainerID),
		RetainerAmount:  amount("retainer_amount", r.RetainerAmount, decimal.Zero),
		Notes:           r.Notes,
	}
	if r.DueDate != "" {
		if due := date("due_date", r.DueDate); !due.IsZero() {
			d.DueDate = &due
		}
	}

	lineDate := d.IssueDate
	if lineDate.IsZero() {
		lineDate = today
	}
	for i, in := range r.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		item := calculator.NewLineItem(in.Type, lineDate)
		item.Type = in.Type
		if in.Date != "" {
			if t := date(prefix+".date", in.Date); !t.IsZero() {
				item.Date = t
			}
		}
		item.Description = in.Description
		item.Quantity = amount(prefix+".quantity", in.Quantity, item.Quantity)
		item.UnitPrice = amount(prefix+".unit_price", in.UnitPrice, item.UnitPrice)
		if in.DiscountType != "" {
			item.DiscountType = in.DiscountType
		}
		item.DiscountValue = amount(prefix+".discount_value", in.DiscountValue, item.DiscountValue)
		if in.Taxable != nil {
			item.Taxable = *in.Taxable
		}
		item.Recompute()
		d.Items = append(d.Items, item)
	}

	if p := r.Installments; p != nil {
		d.Installments = &calculator.InstallmentPlan{
			Count:     p.Count,
			Frequency: p.Frequency,
			StartDate: date("installments.start_date", p.StartDate),
		}
	}

	return d, problems
}

// --- Model conversion ---

func fillInvoice(inv *model.Invoice, d calculator.Draft, res calculator.Result, rule *model.TaxRule, retainer *model.Retainer) {
	t := res.Totals

	inv.ClientID = d.ClientID
	inv.ClientName = d.ClientName
	inv.ClientVATNumber = d.ClientVATNumber
	inv.IssueDate = d.IssueDate
	inv.DueDate = res.DueDate
	inv.PaymentTerms = d.PaymentTerms
	if inv.PaymentTerms == "" && d.DueDate == nil {
		inv.PaymentTerms = calculator.TermsNet30
	}
	inv.Currency = d.Currency
	inv.TaxRuleID = nil
	if rule != nil {
		inv.TaxRuleID = &rule.ID
	}
	inv.DiscountType = d.DiscountType
	inv.DiscountValue = d.DiscountValue

	inv.Subtotal = t.Subtotal
	inv.ItemDiscounts = t.ItemDiscounts
	inv.InvoiceDiscount = t.InvoiceDiscount
	inv.TotalDiscount = t.TotalDiscount
	inv.TaxableAmount = t.TaxableAmount
	inv.VATRate = t.VATRate
	inv.VATAmount = t.VATAmount
	inv.TotalAmount = t.Total
	inv.AppliedRetainer = t.AppliedRetainer
	inv.AmountPaid = decimal.Zero
	inv.BalanceDue = t.BalanceDue
	inv.TotalInWords = t.TotalInWords

	inv.RetainerID = nil
	if retainer != nil && t.AppliedRetainer.IsPositive() {
		inv.RetainerID = &retainer.ID
	}

	inv.InstallmentCount = len(res.Installments)
	inv.InstallmentFrequency = ""
	if d.Installments != nil {
		inv.InstallmentFrequency = d.Installments.Frequency
	}
	inv.Notes = d.Notes
}

func toLineModels(items []calculator.LineItem) []model.InvoiceLineItem {
	out := make([]model.InvoiceLineItem, 0, len(items))
	for i, it := range items {
		out = append(out, model.InvoiceLineItem{
			Position:      i,
			Type:          it.Type,
			Date:          it.Date,
			Description:   it.Description,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue,
			LineTotal:     it.LineTotal,
			Taxable:       it.Taxable,
		})
	}
	return out
}

func toInstallmentModels(schedule []calculator.Installment) []model.InvoiceInstallment {
	out := make([]model.InvoiceInstallment, 0, len(schedule))
	for _, in := range schedule {
		out = append(out, model.InvoiceInstallment{
			Sequence: in.Sequence,
			DueDate:  in.DueDate,
			Amount:   in.Amount,
		})
	}
	return out
}

// --- Response conversion ---

func toTotalsResponse(t calculator.Totals) TotalsResponse {
	return TotalsResponse{
		Subtotal:        money(t.Subtotal),
		ItemDiscounts:   money(t.ItemDiscounts),
		InvoiceDiscount: money(t.InvoiceDiscount),
		TotalDiscount:   money(t.TotalDiscount),
		TaxableAmount:   money(t.TaxableAmount),
		VATRate:         t.VATRate.StringFixed(4),
		VATAmount:       money(t.VATAmount),
		Total:           money(t.Total),
		AppliedRetainer: money(t.AppliedRetainer),
		BalanceDue:      money(t.BalanceDue),
		TotalInWords:    t.TotalInWords,
	}
}

func toDraftLineResponses(items []calculator.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for i, it := range items {
		out = append(out, LineItemResponse{
			ID:            it.ID,
			Position:      i,
			Type:          it.Type,
			Date:          formatDate(it.Date),
			Description:   it.Description,
			Quantity:      it.Quantity.String(),
			UnitPrice:     money(it.UnitPrice),
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue.String(),
			LineTotal:     money(it.LineTotal),
			Taxable:       it.Taxable,
		})
	}
	return out
}

func toScheduleResponses(schedule []calculator.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, 0, len(schedule))
	for _, in := range schedule {
		out = append(out, InstallmentResponse{Sequence: in.Sequence, DueDate: formatDate(in.DueDate), Amount: money(in.Amount)})
	}
	return out
}

// toInvoiceResponse renders an invoice; details adds lines, installments and payments.
func toInvoiceResponse(inv model.Invoice, details bool) InvoiceResponse {
	res := InvoiceResponse{
		ID:              inv.ID.String(),
		InvoiceNo:       inv.InvoiceNo,
		Status:          inv.Status,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
		ClientVATNumber: inv.ClientVATNumber,
		IssueDate:       formatDate(inv.IssueDate),
		DueDate:         formatDate(inv.DueDate),
		PaymentTerms:    inv.PaymentTerms,
		Currency:        inv.Currency,
		DiscountType:    inv.DiscountType,
		DiscountValue:   inv.DiscountValue.String(),
		Totals: TotalsResponse{
			Subtotal:        money(inv.Subtotal),
			ItemDiscounts:   money(inv.ItemDiscounts),
			InvoiceDiscount: money(inv.InvoiceDiscount),
			TotalDiscount:   money(inv.TotalDiscount),
			TaxableAmount:   money(inv.TaxableAmount),
			VATRate:         inv.VATRate.StringFixed(4),
			VATAmount:       money(inv.VATAmount),
			Total:           money(inv.TotalAmount),
			AppliedRetainer: money(inv.AppliedRetainer),
			BalanceDue:      money(inv.BalanceDue),
			TotalInWords:    inv.TotalInWords,
		},
		AmountPaid:           money(inv.AmountPaid),
		InstallmentCount:     inv.InstallmentCount,
		InstallmentFrequency: inv.InstallmentFrequency,
		SubmittedAt:          formatTimePtr(inv.SubmittedAt),
		ApprovedAt:           formatTimePtr(inv.ApprovedAt),
		ReviewNote:           inv.ReviewNote,
		VoidReason:           inv.VoidReason,
		Notes:                inv.Notes,
		CreatedAt:            inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            inv.UpdatedAt.Format(time.RFC3339),
	}
	if inv.TaxRuleID != nil {
		s := inv.TaxRuleID.String()
		res.TaxRuleID = &s
	}
	if inv.RetainerID != nil {
		s := inv.RetainerID.String()
		res.RetainerID = &s
	}
	if inv.ApprovedBy != nil {
		s := inv.ApprovedBy.String()
		res.ApprovedBy = &s
	}
	if inv.Approver != nil {
		res.ApproverName = inv.Approver.Username
	}
	if !details {
		return res
	}

	res.Items = make([]LineItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		res.Items = append(res.Items, LineItemResponse{
			ID:            it.ID.String(),
			Position:      it.Position,
			Type:          it.Type,
			Date:          formatDate(it.Date),
			Description:   it.Description,
			Quantity:      it.Quantity.String(),
			UnitPrice:     money(it.UnitPrice),
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue.String(),
			LineTotal:     money(it.LineTotal),
			Taxable:       it.Taxable,
		})
	}
	res.Installments = make([]InstallmentResponse, 0, len(inv.Installments))
	for _, in := range inv.Installments {
		res.Installments = append(res.Installments, InstallmentResponse{Sequence: in.Sequence, DueDate: formatDate(in.DueDate), Amount: money(in.Amount)})
	}
	res.Payments = make([]PaymentResponse, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		res.Payments = append(res.Payments, PaymentResponse{
			ID:        p.ID.String(),
			Amount:    money(p.Amount),
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    formatDate(p.PaidAt),
			Note:      p.Note,
		})
	}
	return res
}
