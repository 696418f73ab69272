package repository

import (
	"context"
	"fmt"
	"time"

	"billing/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusSummary aggregates invoices sharing one status.
type StatusSummary struct {
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
}

type StatisticsRepository interface {
	SummarizeByStatus(ctx context.Context, clientID string) ([]StatusSummary, error)
	CountOverdue(ctx context.Context, clientID string, asOf time.Time) (int64, decimal.Decimal, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) SummarizeByStatus(ctx context.Context, clientID string) ([]StatusSummary, error) {
	var rows []StatusSummary
	query := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount, COALESCE(SUM(balance_due), 0) AS balance_due")
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if err := query.Group("status").Order("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to summarize invoices: %w", err)
	}
	return rows, nil
}

// CountOverdue counts approved or part-paid invoices past their due date with money outstanding.
func (r *statisticsRepository) CountOverdue(ctx context.Context, clientID string, asOf time.Time) (int64, decimal.Decimal, error) {
	var result struct {
		Count  int64
		Amount decimal.Decimal
	}
	query := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance_due), 0) AS amount").
		Where("status IN ? AND due_date < ? AND balance_due > 0", []string{model.InvoiceStatusApproved, model.InvoiceStatusPartial}, asOf)
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if err := query.Scan(&result).Error; err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to count overdue invoices: %w", err)
	}
	return result.Count, result.Amount, nil
}
