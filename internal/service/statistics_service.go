package service

import (
	"context"
	"fmt"

	"billing/internal/cache"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"

	"github.com/shopspring/decimal"
)

type StatusStat struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	TotalAmount string `json:"total_amount"`
	BalanceDue  string `json:"balance_due"`
}

// InvoiceStats summarises invoices per status plus the overdue receivable.
type InvoiceStats struct {
	ByStatus         []StatusStat `json:"by_status"`
	TotalInvoiced    string       `json:"total_invoiced"`
	TotalOutstanding string       `json:"total_outstanding"`
	OverdueCount     int64        `json:"overdue_count"`
	OverdueAmount    string       `json:"overdue_amount"`
}

type StatisticsService interface {
	GetInvoiceStats(ctx context.Context, clientID string) (InvoiceStats, error)
}

type statisticsService struct {
	repo  repository.StatisticsRepository
	store cache.Store
	opts  Options
}

func NewStatisticsService(repo repository.StatisticsRepository, store cache.Store, opts Options) StatisticsService {
	return &statisticsService{repo: repo, store: store, opts: opts.withDefaults()}
}

// GetInvoiceStats reports every status, zero rows included, so dashboards render a fixed layout.
// Void and draft invoices are excluded from the invoiced and outstanding totals.
func (s *statisticsService) GetInvoiceStats(ctx context.Context, clientID string) (InvoiceStats, error) {
	key := invalidation.InvoiceStatsKey(queryKey("client", clientID))
	return cached(ctx, s.store, key, s.opts.CacheTTL, func() (InvoiceStats, error) {
		rows, err := s.repo.SummarizeByStatus(ctx, clientID)
		if err != nil {
			return InvoiceStats{}, err
		}
		byStatus := make(map[string]repository.StatusSummary, len(rows))
		for _, r := range rows {
			byStatus[r.Status] = r
		}

		invoiced := decimal.Zero
		outstanding := decimal.Zero
		stats := InvoiceStats{ByStatus: make([]StatusStat, 0, len(model.InvoiceStatuses))}
		for _, status := range model.InvoiceStatuses {
			row, ok := byStatus[status]
			if !ok {
				row = repository.StatusSummary{Status: status}
			}
			stats.ByStatus = append(stats.ByStatus, StatusStat{
				Status:      status,
				Count:       row.Count,
				TotalAmount: money(row.TotalAmount),
				BalanceDue:  money(row.BalanceDue),
			})
			switch status {
			case model.InvoiceStatusApproved, model.InvoiceStatusPartial, model.InvoiceStatusPaid:
				invoiced = invoiced.Add(row.TotalAmount)
				outstanding = outstanding.Add(row.BalanceDue)
			}
		}
		stats.TotalInvoiced = money(invoiced)
		stats.TotalOutstanding = money(outstanding)

		count, amount, err := s.repo.CountOverdue(ctx, clientID, s.opts.Now())
		if err != nil {
			return InvoiceStats{}, fmt.Errorf("failed to compute overdue invoices: %w", err)
		}
		stats.OverdueCount = count
		stats.OverdueAmount = money(amount)
		return stats, nil
	})
}
