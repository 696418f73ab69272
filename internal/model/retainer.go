package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RetainerStatus enum constants
const (
	RetainerStatusActive   = "ACTIVE"
	RetainerStatusDepleted = "DEPLETED"
	RetainerStatusRefunded = "REFUNDED"
)

// RetainerTxType enum constants
const (
	RetainerTxDeposit     = "DEPOSIT"
	RetainerTxConsumption = "CONSUMPTION"
	RetainerTxRelease     = "RELEASE" // consumption returned when an invoice is voided
	RetainerTxRefund      = "REFUND"
)

// Retainer is a pre-paid client balance that invoices can draw from.
type Retainer struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	RetainerNo     string                `gorm:"type:varchar(30);uniqueIndex;not null" json:"retainer_no"`
	ClientID       string                `gorm:"type:varchar(64);not null;index" json:"client_id"`
	ClientName     string                `gorm:"type:varchar(255)" json:"client_name"`
	Currency       string                `gorm:"type:varchar(3);not null;default:'SAR'" json:"currency"`
	InitialAmount  decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"initial_amount"`
	CurrentBalance decimal.Decimal       `gorm:"type:decimal(18,4);not null" json:"current_balance"`
	MinimumBalance decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0" json:"minimum_balance"`
	Status         string                `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	Notes          string                `gorm:"type:text" json:"notes"`
	Transactions   []RetainerTransaction `gorm:"foreignKey:RetainerID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// RetainerTransaction is one movement on a retainer balance.
type RetainerTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RetainerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"retainer_id"`
	Type         string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"balance_after"`
	InvoiceID    *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"`
	Description  string          `gorm:"type:text" json:"description"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
}

func (r *Retainer) BeforeCreate(*gorm.DB) error { ensureID(&r.ID); return nil }
func (t *RetainerTransaction) BeforeCreate(*gorm.DB) error { ensureID(&t.ID); return nil }
