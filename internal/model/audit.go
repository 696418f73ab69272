package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateInvoice  = "CREATE_INVOICE"
	ActionUpdateInvoice  = "UPDATE_INVOICE"
	ActionSubmitInvoice  = "SUBMIT_INVOICE"
	ActionApproveInvoice = "APPROVE_INVOICE"
	ActionRejectInvoice  = "REJECT_INVOICE"
	ActionRecordPayment  = "RECORD_PAYMENT"
	ActionVoidInvoice    = "VOID_INVOICE"

	ActionCreateRetainer    = "CREATE_RETAINER"
	ActionConsumeRetainer   = "CONSUME_RETAINER"
	ActionReplenishRetainer = "REPLENISH_RETAINER"
	ActionRefundRetainer    = "REFUND_RETAINER"

	ActionCreateTaxRule = "CREATE_TAX_RULE"
	ActionUpdateTaxRule = "UPDATE_TAX_RULE"
	ActionDeleteTaxRule = "DELETE_TAX_RULE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // Nullable for automated actions
	User       *User          `gorm:"foreignKey:UserID" json:"user"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"` // JSON payload of the action
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error { ensureID(&a.ID); return nil }
