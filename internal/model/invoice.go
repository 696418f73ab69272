package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusDraft           = "DRAFT"
	InvoiceStatusPendingApproval = "PENDING_APPROVAL"
	InvoiceStatusApproved        = "APPROVED"
	InvoiceStatusRejected        = "REJECTED"
	InvoiceStatusPartial         = "PARTIAL"
	InvoiceStatusPaid            = "PAID"
	InvoiceStatusVoid            = "VOID"
)

// InvoiceStatuses lists every status in lifecycle order.
var InvoiceStatuses = []string{
	InvoiceStatusDraft, InvoiceStatusPendingApproval, InvoiceStatusApproved, InvoiceStatusRejected,
	InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid,
}

// Invoice is a persisted invoice. Money columns hold the calculator output
// captured at the last save; they are never updated piecemeal.
type Invoice struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNo       string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_no"`
	ClientID        string     `gorm:"type:varchar(64);not null;index" json:"client_id"`
	ClientName      string     `gorm:"type:varchar(255)" json:"client_name"`
	ClientVATNumber string     `gorm:"type:varchar(15)" json:"client_vat_number"`
	IssueDate       time.Time  `gorm:"type:date;not null;index" json:"issue_date"`
	DueDate         time.Time  `gorm:"type:date;not null" json:"due_date"`
	PaymentTerms    string     `gorm:"type:varchar(20)" json:"payment_terms"`
	Currency        string     `gorm:"type:varchar(3);not null;default:'SAR'" json:"currency"`
	TaxRuleID       *uuid.UUID `gorm:"type:uuid;index" json:"tax_rule_id"`
	TaxRule         *TaxRule   `gorm:"foreignKey:TaxRuleID" json:"tax_rule,omitempty"`

	DiscountType    string          `gorm:"type:varchar(20)" json:"discount_type"`
	DiscountValue   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount_value"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	ItemDiscounts   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"item_discounts"`
	InvoiceDiscount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"invoice_discount"`
	TotalDiscount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_discount"`
	TaxableAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"taxable_amount"`
	VATRate         decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"vat_rate"`
	VATAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"vat_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	RetainerID      *uuid.UUID      `gorm:"type:uuid;index" json:"retainer_id"`
	AppliedRetainer decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"applied_retainer"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_paid"`
	BalanceDue      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"balance_due"` // total - retainer - payments
	TotalInWords    string          `gorm:"type:text" json:"total_in_words"`

	InstallmentCount     int    `gorm:"not null;default:0" json:"installment_count"`
	InstallmentFrequency string `gorm:"type:varchar(20)" json:"installment_frequency"`

	Status      string     `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ApprovedBy  *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	Approver    *User      `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at"`
	ReviewNote  string     `gorm:"type:text" json:"review_note"`
	VoidReason  string     `gorm:"type:text" json:"void_reason"`
	Notes       string     `gorm:"type:text" json:"notes"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items        []InvoiceLineItem    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	Installments []InvoiceInstallment `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"installments"`
	Payments     []InvoicePayment     `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"payments"`
}

// InvoiceLineItem is one persisted row of an invoice, in display order.
type InvoiceLineItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position      int             `gorm:"not null" json:"position"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"` // time, expense, flat_fee, product, discount, subtotal, comment
	Date          time.Time       `gorm:"type:date" json:"date"`
	Description   string          `gorm:"type:text" json:"description"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	DiscountType  string          `gorm:"type:varchar(20)" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount_value"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_total"`
	Taxable       bool            `gorm:"not null;default:true" json:"taxable"`
}

// InvoiceInstallment is a scheduled part-payment of the balance due.
type InvoiceInstallment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Sequence  int             `gorm:"not null" json:"sequence"`
	DueDate   time.Time       `gorm:"type:date;not null" json:"due_date"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
}

// InvoicePayment records money received against an approved invoice.
type InvoicePayment struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method    string          `gorm:"type:varchar(30)" json:"method"`
	Reference string          `gorm:"type:varchar(100)" json:"reference"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	Note      string          `gorm:"type:text" json:"note"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error { ensureID(&i.ID); return nil }
func (l *InvoiceLineItem) BeforeCreate(*gorm.DB) error { ensureID(&l.ID); return nil }
func (s *InvoiceInstallment) BeforeCreate(*gorm.DB) error { ensureID(&s.ID); return nil }
func (p *InvoicePayment) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// ensureID assigns a fresh uuid when the primary key is still zero.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
