package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billing/internal/cache"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateRetainerRequest struct {
	ClientID       string `json:"client_id" binding:"required"`
	ClientName     string `json:"client_name"`
	Currency       string `json:"currency" binding:"omitempty,len=3"`
	InitialAmount  string `json:"initial_amount" binding:"required"`
	MinimumBalance string `json:"minimum_balance"`
	Notes          string `json:"notes"`
}

type RetainerMovementRequest struct {
	Amount      string `json:"amount" binding:"required"`
	InvoiceID   string `json:"invoice_id"`
	Description string `json:"description"`
}

type RefundRetainerRequest struct {
	Description string `json:"description"`
}

type RetainerFilter struct {
	ClientID string
	Status   string
	Page     int
	Limit    int
}

type RetainerResponse struct {
	ID             string `json:"id"`
	RetainerNo     string `json:"retainer_no"`
	ClientID       string `json:"client_id"`
	ClientName     string `json:"client_name"`
	Currency       string `json:"currency"`
	InitialAmount  string `json:"initial_amount"`
	CurrentBalance string `json:"current_balance"`
	MinimumBalance string `json:"minimum_balance"`
	Status         string `json:"status"`
	LowBalance     bool   `json:"low_balance"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"created_at"`
}

type RetainerTransactionResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Amount       string  `json:"amount"`
	BalanceAfter string  `json:"balance_after"`
	InvoiceID    *string `json:"invoice_id"`
	Description  string  `json:"description"`
	CreatedAt    string  `json:"created_at"`
}

type RetainerListResponse struct {
	Items []RetainerResponse `json:"items"`
	Total int64              `json:"total"`
}

// --- Interface ---

type RetainerService interface {
	CreateRetainer(ctx context.Context, req CreateRetainerRequest, userID string) (RetainerResponse, error)
	ListRetainers(ctx context.Context, filter RetainerFilter) ([]RetainerResponse, int64, error)
	GetRetainer(ctx context.Context, id string) (RetainerResponse, error)
	ConsumeRetainer(ctx context.Context, id string, req RetainerMovementRequest, userID string) (RetainerResponse, error)
	ReplenishRetainer(ctx context.Context, id string, req RetainerMovementRequest, userID string) (RetainerResponse, error)
	RefundRetainer(ctx context.Context, id string, req RefundRetainerRequest, userID string) (RetainerResponse, error)
	GetHistory(ctx context.Context, id string) ([]RetainerTransactionResponse, error)
}

type retainerService struct {
	retainerRepo repository.RetainerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	ledger       *retainerLedger
	store        cache.Store
	bus          *invalidation.Bus
	opts         Options
}

func NewRetainerService(
	retainerRepo repository.RetainerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	store cache.Store,
	bus *invalidation.Bus,
	opts Options,
) RetainerService {
	return &retainerService{
		retainerRepo: retainerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		ledger:       &retainerLedger{repo: retainerRepo},
		store:        store,
		bus:          bus,
		opts:         opts.withDefaults(),
	}
}

// --- Implementation ---

func (s *retainerService) CreateRetainer(ctx context.Context, req CreateRetainerRequest, userID string) (RetainerResponse, error) {
	initial, err := parseAmount(req.InitialAmount, "initial_amount")
	if err != nil {
		return RetainerResponse{}, err
	}
	minimum := decimal.Zero
	if req.MinimumBalance != "" {
		minimum, err = decimal.NewFromString(req.MinimumBalance)
		if err != nil || minimum.IsNegative() {
			return RetainerResponse{}, invalidInput("minimum_balance must be a non-negative amount")
		}
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	var retainer model.Retainer
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		no, err := documentNo(txCtx, "RET", s.opts.Now(), s.retainerRepo.CountByPrefix)
		if err != nil {
			return fmt.Errorf("failed to generate retainer number: %w", err)
		}
		retainer = model.Retainer{
			RetainerNo:     no,
			ClientID:       req.ClientID,
			ClientName:     req.ClientName,
			Currency:       currency,
			InitialAmount:  initial,
			CurrentBalance: initial,
			MinimumBalance: minimum.Round(2),
			Status:         model.RetainerStatusActive,
			Notes:          req.Notes,
		}
		if err := s.retainerRepo.Create(txCtx, &retainer); err != nil {
			return fmt.Errorf("failed to create retainer: %w", err)
		}
		if err := s.retainerRepo.AddTransaction(txCtx, &model.RetainerTransaction{
			RetainerID:   retainer.ID,
			Type:         model.RetainerTxDeposit,
			Amount:       initial,
			BalanceAfter: initial,
			Description:  "Initial deposit",
		}); err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}
		writeAuditLog(txCtx, s.auditRepo, userID, model.ActionCreateRetainer, retainer.ID.String(), retainer.RetainerNo, req)
		return nil
	})
	if err != nil {
		return RetainerResponse{}, err
	}

	invalidate(ctx, s.bus, map[string][]string{invalidation.ResourceRetainers: nil})
	return toRetainerResponse(retainer), nil
}

func (s *retainerService) ListRetainers(ctx context.Context, filter RetainerFilter) ([]RetainerResponse, int64, error) {
	key := invalidation.RetainerListKey(queryKey(
		"client", filter.ClientID, "status", filter.Status,
		"page", fmt.Sprint(filter.Page), "limit", fmt.Sprint(filter.Limit),
	))
	res, err := cached(ctx, s.store, key, s.opts.CacheTTL, func() (RetainerListResponse, error) {
		retainers, total, err := s.retainerRepo.List(ctx, repository.RetainerListFilter{
			ClientID: filter.ClientID,
			Status:   filter.Status,
			Page:     filter.Page,
			Limit:    filter.Limit,
		})
		if err != nil {
			return RetainerListResponse{}, fmt.Errorf("failed to list retainers: %w", err)
		}
		items := make([]RetainerResponse, 0, len(retainers))
		for _, r := range retainers {
			items = append(items, toRetainerResponse(r))
		}
		return RetainerListResponse{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}

func (s *retainerService) GetRetainer(ctx context.Context, id string) (RetainerResponse, error) {
	retainerID, err := parseID(id, "retainer")
	if err != nil {
		return RetainerResponse{}, err
	}
	return cached(ctx, s.store, invalidation.RetainerDetailKey(retainerID.String()), s.opts.CacheTTL, func() (RetainerResponse, error) {
		retainer, err := s.retainerRepo.FindByID(ctx, retainerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return RetainerResponse{}, notFound("retainer")
			}
			return RetainerResponse{}, fmt.Errorf("failed to fetch retainer: %w", err)
		}
		return toRetainerResponse(*retainer), nil
	})
}

func (s *retainerService) ConsumeRetainer(ctx context.Context, id string, req RetainerMovementRequest, userID string) (RetainerResponse, error) {
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return RetainerResponse{}, err
	}
	var invoiceID *uuid.UUID
	if req.InvoiceID != "" {
		parsed, err := parseID(req.InvoiceID, "invoice")
		if err != nil {
			return RetainerResponse{}, err
		}
		invoiceID = &parsed
	}

	return s.mutate(ctx, id, model.ActionConsumeRetainer, userID, req, func(txCtx context.Context, r *model.Retainer) error {
		return s.ledger.consume(txCtx, r, amount, invoiceID, req.Description)
	})
}

func (s *retainerService) ReplenishRetainer(ctx context.Context, id string, req RetainerMovementRequest, userID string) (RetainerResponse, error) {
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return RetainerResponse{}, err
	}

	return s.mutate(ctx, id, model.ActionReplenishRetainer, userID, req, func(txCtx context.Context, r *model.Retainer) error {
		if r.Status == model.RetainerStatusRefunded {
			return invalidState("retainer %s has been refunded", r.RetainerNo)
		}
		desc := req.Description
		if desc == "" {
			desc = "Replenishment"
		}
		return s.ledger.credit(txCtx, r, model.RetainerTxDeposit, amount, nil, desc)
	})
}

func (s *retainerService) RefundRetainer(ctx context.Context, id string, req RefundRetainerRequest, userID string) (RetainerResponse, error) {
	return s.mutate(ctx, id, model.ActionRefundRetainer, userID, req, func(txCtx context.Context, r *model.Retainer) error {
		if r.Status == model.RetainerStatusRefunded {
			return invalidState("retainer %s has already been refunded", r.RetainerNo)
		}
		desc := req.Description
		if desc == "" {
			desc = "Balance refunded to client"
		}
		return s.ledger.refund(txCtx, r, r.CurrentBalance, nil, desc)
	})
}

func (s *retainerService) GetHistory(ctx context.Context, id string) ([]RetainerTransactionResponse, error) {
	retainerID, err := parseID(id, "retainer")
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.store, invalidation.RetainerHistoryKey(retainerID.String()), s.opts.CacheTTL, func() ([]RetainerTransactionResponse, error) {
		if _, err := s.retainerRepo.FindByID(ctx, retainerID); err != nil {
			if repository.IsNotFound(err) {
				return nil, notFound("retainer")
			}
			return nil, fmt.Errorf("failed to fetch retainer: %w", err)
		}
		txs, err := s.retainerRepo.ListTransactions(ctx, retainerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch retainer history: %w", err)
		}
		res := make([]RetainerTransactionResponse, 0, len(txs))
		for _, t := range txs {
			res = append(res, toRetainerTransactionResponse(t))
		}
		return res, nil
	})
}

// mutate locks the retainer, applies fn and records the audit entry in one transaction.
func (s *retainerService) mutate(ctx context.Context, id, action, userID string, details interface{}, fn func(context.Context, *model.Retainer) error) (RetainerResponse, error) {
	retainerID, err := parseID(id, "retainer")
	if err != nil {
		return RetainerResponse{}, err
	}

	var retainer *model.Retainer
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.retainerRepo.FindByIDForUpdate(txCtx, retainerID)
		if err != nil {
			if repository.IsNotFound(err) {
				return notFound("retainer")
			}
			return fmt.Errorf("failed to fetch retainer: %w", err)
		}
		retainer = r
		if err := fn(txCtx, retainer); err != nil {
			return err
		}
		writeAuditLog(txCtx, s.auditRepo, userID, action, retainer.ID.String(), retainer.RetainerNo, details)
		return nil
	})
	if err != nil {
		return RetainerResponse{}, err
	}

	invalidate(ctx, s.bus, map[string][]string{invalidation.ResourceRetainer: {retainer.ID.String()}})
	return toRetainerResponse(*retainer), nil
}

// --- Ledger ---

// retainerLedger applies balance movements. Callers hold the row lock.
type retainerLedger struct {
	repo repository.RetainerRepository
}

func (l *retainerLedger) consume(ctx context.Context, r *model.Retainer, amount decimal.Decimal, invoiceID *uuid.UUID, desc string) error {
	if !amount.IsPositive() {
		return nil
	}
	if r.Status != model.RetainerStatusActive {
		return invalidState("retainer %s is %s", r.RetainerNo, strings.ToLower(r.Status))
	}
	if r.CurrentBalance.LessThan(amount) {
		return invalidInput("retainer %s has only %s available", r.RetainerNo, money(r.CurrentBalance))
	}
	if desc == "" {
		desc = "Applied to invoice"
	}

	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	if r.CurrentBalance.IsZero() {
		r.Status = model.RetainerStatusDepleted
	}
	if err := l.repo.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to update retainer: %w", err)
	}
	if err := l.repo.AddTransaction(ctx, &model.RetainerTransaction{
		RetainerID:   r.ID,
		Type:         model.RetainerTxConsumption,
		Amount:       amount,
		BalanceAfter: r.CurrentBalance,
		InvoiceID:    invoiceID,
		Description:  desc,
	}); err != nil {
		return fmt.Errorf("failed to record consumption: %w", err)
	}
	return nil
}

func (l *retainerLedger) credit(ctx context.Context, r *model.Retainer, txType string, amount decimal.Decimal, invoiceID *uuid.UUID, desc string) error {
	r.CurrentBalance = r.CurrentBalance.Add(amount)
	if r.Status == model.RetainerStatusDepleted && r.CurrentBalance.IsPositive() {
		r.Status = model.RetainerStatusActive
	}
	if err := l.repo.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to update retainer: %w", err)
	}
	if err := l.repo.AddTransaction(ctx, &model.RetainerTransaction{
		RetainerID:   r.ID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: r.CurrentBalance,
		InvoiceID:    invoiceID,
		Description:  desc,
	}); err != nil {
		return fmt.Errorf("failed to record %s: %w", strings.ToLower(txType), err)
	}
	return nil
}

// outstanding is what the invoice still holds from the retainer: consumptions minus releases.
func (l *retainerLedger) outstanding(ctx context.Context, retainerID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	txs, err := l.repo.FindInvoiceConsumption(ctx, retainerID, invoiceID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load retainer movements: %w", err)
	}
	held := decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case model.RetainerTxConsumption:
			held = held.Add(t.Amount)
		case model.RetainerTxRelease:
			held = held.Sub(t.Amount)
		}
	}
	return held, nil
}

// release returns whatever the invoice still holds to the retainer.
func (l *retainerLedger) release(ctx context.Context, r *model.Retainer, invoiceID uuid.UUID, desc string) (decimal.Decimal, error) {
	held, err := l.outstanding(ctx, r.ID, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	if !held.IsPositive() {
		return decimal.Zero, nil
	}
	if err := l.credit(ctx, r, model.RetainerTxRelease, held, &invoiceID, desc); err != nil {
		return decimal.Zero, err
	}
	// A refunded retainer keeps a zero balance: released money goes back to the client.
	if r.Status == model.RetainerStatusRefunded {
		if err := l.refund(ctx, r, held, &invoiceID, "Refunded after release: "+desc); err != nil {
			return decimal.Zero, err
		}
	}
	return held, nil
}

// refund pays amount out to the client and closes the retainer at a zero balance.
func (l *retainerLedger) refund(ctx context.Context, r *model.Retainer, amount decimal.Decimal, invoiceID *uuid.UUID, desc string) error {
	r.CurrentBalance = r.CurrentBalance.Sub(amount)
	r.Status = model.RetainerStatusRefunded
	if err := l.repo.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to update retainer: %w", err)
	}
	if err := l.repo.AddTransaction(ctx, &model.RetainerTransaction{
		RetainerID:   r.ID,
		Type:         model.RetainerTxRefund,
		Amount:       amount,
		BalanceAfter: r.CurrentBalance,
		InvoiceID:    invoiceID,
		Description:  desc,
	}); err != nil {
		return fmt.Errorf("failed to record refund: %w", err)
	}
	return nil
}

// --- Helpers ---

func toRetainerResponse(r model.Retainer) RetainerResponse {
	return RetainerResponse{
		ID:             r.ID.String(),
		RetainerNo:     r.RetainerNo,
		ClientID:       r.ClientID,
		ClientName:     r.ClientName,
		Currency:       r.Currency,
		InitialAmount:  money(r.InitialAmount),
		CurrentBalance: money(r.CurrentBalance),
		MinimumBalance: money(r.MinimumBalance),
		Status:         r.Status,
		LowBalance:     r.Status != model.RetainerStatusRefunded && r.CurrentBalance.LessThan(r.MinimumBalance),
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toRetainerTransactionResponse(t model.RetainerTransaction) RetainerTransactionResponse {
	res := RetainerTransactionResponse{
		ID:           t.ID.String(),
		Type:         t.Type,
		Amount:       money(t.Amount),
		BalanceAfter: money(t.BalanceAfter),
		Description:  t.Description,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
	}
	if t.InvoiceID != nil {
		s := t.InvoiceID.String()
		res.InvoiceID = &s
	}
	return res
}
