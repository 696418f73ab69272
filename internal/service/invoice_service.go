package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"billing/internal/cache"
	"billing/internal/calculator"
	"billing/internal/invalidation"
	"billing/internal/model"
	"billing/internal/repository"
	"billing/internal/validation"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// --- Interface ---

type InvoiceService interface {
	PreviewInvoice(ctx context.Context, req InvoiceDraftRequest) (PreviewResponse, error)
	CreateInvoice(ctx context.Context, req InvoiceDraftRequest, userID string) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, id string, req InvoiceDraftRequest, userID string) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	LoadInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	SubmitInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	ApproveInvoice(ctx context.Context, id string, req ReviewRequest, userID string) (InvoiceResponse, error)
	RejectInvoice(ctx context.Context, id string, req RejectRequest, userID string) (InvoiceResponse, error)
	RecordPayment(ctx context.Context, id string, req PaymentRequest, userID string) (InvoiceResponse, error)
	VoidInvoice(ctx context.Context, id string, req VoidRequest, userID string) (InvoiceResponse, error)
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	taxRuleRepo  repository.TaxRuleRepository
	retainerRepo repository.RetainerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	ledger       *retainerLedger
	store        cache.Store
	bus          *invalidation.Bus
	opts         Options
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	taxRuleRepo repository.TaxRuleRepository,
	retainerRepo repository.RetainerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	store cache.Store,
	bus *invalidation.Bus,
	opts Options,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		taxRuleRepo:  taxRuleRepo,
		retainerRepo: retainerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		ledger:       &retainerLedger{repo: retainerRepo},
		store:        store,
		bus:          bus,
		opts:         opts.withDefaults(),
	}
}

// --- Drafting ---

// PreviewInvoice recomputes the form without persisting anything. Totals are
// returned even when the checklist has problems; the schedule only when the
// draft is valid.
func (s *invoiceService) PreviewInvoice(ctx context.Context, req InvoiceDraftRequest) (PreviewResponse, error) {
	draft, problems := s.draft(req)

	retainer, retainerProblems, err := s.findRetainer(ctx, draft, false)
	if err != nil {
		return PreviewResponse{}, err
	}
	problems = append(problems, retainerProblems...)

	if _, err := s.applyVATRate(ctx, &draft); err != nil {
		return PreviewResponse{}, err
	}

	available := availableBalance(retainer)
	res := PreviewResponse{
		Valid:        problems.Empty(),
		Problems:     problems,
		Installments: []InstallmentResponse{},
	}
	if res.Problems == nil {
		res.Problems = validation.Result{}
	}

	if res.Valid {
		result, err := draft.Evaluate(available)
		if err != nil {
			return PreviewResponse{}, invalidInput("%v", err)
		}
		res.Items = toDraftLineResponses(result.Totals.Items)
		res.Totals = toTotalsResponse(result.Totals)
		res.DueDate = formatDate(result.DueDate)
		res.Installments = toScheduleResponses(result.Installments)
		return res, nil
	}

	totals := calculator.Calculate(draft.Input(available))
	res.Items = toDraftLineResponses(totals.Items)
	res.Totals = toTotalsResponse(totals)
	if due, err := draft.EffectiveDueDate(); err == nil && !draft.IssueDate.IsZero() {
		res.DueDate = formatDate(due)
	}
	return res, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req InvoiceDraftRequest, userID string) (InvoiceResponse, error) {
	draft, problems := s.draft(req)
	if !problems.Empty() {
		return InvoiceResponse{}, &ValidationError{Problems: problems}
	}

	var invoice model.Invoice
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		retainer, problems, err := s.findRetainer(txCtx, draft, true)
		if err != nil {
			return err
		}
		if !problems.Empty() {
			return &ValidationError{Problems: problems}
		}

		rule, err := s.applyVATRate(txCtx, &draft)
		if err != nil {
			return err
		}

		result, err := draft.Evaluate(availableBalance(retainer))
		if err != nil {
			return invalidInput("%v", err)
		}

		invoiceNo, err := documentNo(txCtx, "INV", s.opts.Now(), s.invoiceRepo.CountByPrefix)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}

		invoice = model.Invoice{
			InvoiceNo: invoiceNo,
			Status:    model.InvoiceStatusDraft,
			CreatedBy: userRef(userID),
		}
		fillInvoice(&invoice, draft, result, rule, retainer)
		invoice.Items = toLineModels(result.Totals.Items)
		invoice.Installments = toInstallmentModels(result.Installments)

		if err := s.invoiceRepo.Create(txCtx, &invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		if retainer != nil {
			if err := s.ledger.consume(txCtx, retainer, invoice.AppliedRetainer, &invoice.ID, "Applied to "+invoiceNo); err != nil {
				return err
			}
		}

		writeAuditLog(txCtx, s.auditRepo, userID, model.ActionCreateInvoice, invoice.ID.String(), invoiceNo, map[string]string{
			"client_id": invoice.ClientID,
			"total":     money(invoice.TotalAmount),
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.invalidateInvoice(ctx, &invoice, nil)
	return s.GetInvoice(ctx, invoice.ID.String())
}

// UpdateInvoice replaces header, lines and schedule of a draft or rejected
// invoice. Any retainer amount it held is released before the new one is applied.
func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req InvoiceDraftRequest, userID string) (InvoiceResponse, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return InvoiceResponse{}, err
	}

	draft, problems := s.draft(req)
	if !problems.Empty() {
		return InvoiceResponse{}, &ValidationError{Problems: problems}
	}

	var (
		invoice     *model.Invoice
		oldRetainer *uuid.UUID
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.lockInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		invoice = inv
		if inv.Status != model.InvoiceStatusDraft && inv.Status != model.InvoiceStatusRejected {
			return invalidState("invoice %s is %s and can no longer be edited", inv.InvoiceNo, inv.Status)
		}

		if inv.RetainerID != nil {
			oldRetainer = inv.RetainerID
			if err := s.releaseRetainer(txCtx, inv, "Released by edit of "+inv.InvoiceNo); err != nil {
				return err
			}
		}

		retainer, problems, err := s.findRetainer(txCtx, draft, true)
		if err != nil {
			return err
		}
		if !problems.Empty() {
			return &ValidationError{Problems: problems}
		}

		rule, err := s.applyVATRate(txCtx, &draft)
		if err != nil {
			return err
		}

		result, err := draft.Evaluate(availableBalance(retainer))
		if err != nil {
			return invalidInput("%v", err)
		}

		fillInvoice(inv, draft, result, rule, retainer)
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if err := s.invoiceRepo.ReplaceLines(txCtx, inv.ID, toLineModels(result.Totals.Items), toInstallmentModels(result.Installments)); err != nil {
			return fmt.Errorf("failed to replace invoice lines: %w", err)
		}

		if retainer != nil {
			if err := s.ledger.consume(txCtx, retainer, inv.AppliedRetainer, &inv.ID, "Applied to "+inv.InvoiceNo); err != nil {
				return err
			}
		}

		writeAuditLog(txCtx, s.auditRepo, userID, model.ActionUpdateInvoice, inv.ID.String(), inv.InvoiceNo, map[string]string{
			"total": money(inv.TotalAmount),
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.invalidateInvoice(ctx, invoice, oldRetainer)
	return s.GetInvoice(ctx, invoice.ID.String())
}

// --- Reads ---

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return InvoiceResponse{}, err
	}
	return cached(ctx, s.store, invalidation.InvoiceDetailKey(invoiceID.String()), s.opts.CacheTTL, func() (InvoiceResponse, error) {
		inv, err := s.loadDetails(ctx, invoiceID)
		if err != nil {
			return InvoiceResponse{}, err
		}
		return toInvoiceResponse(*inv, true), nil
	})
}

// LoadInvoice returns the persisted invoice with its children, bypassing the cache.
func (s *invoiceService) LoadInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return nil, err
	}
	return s.loadDetails(ctx, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, 0, invalidInput("unknown status %q", filter.Status)
	}

	key := invalidation.InvoiceListKey(queryKey(
		"status", filter.Status, "client", filter.ClientID, "no", filter.InvoiceNo,
		"page", fmt.Sprint(filter.Page), "limit", fmt.Sprint(filter.Limit),
	))
	res, err := cached(ctx, s.store, key, s.opts.CacheTTL, func() (InvoiceListResponse, error) {
		invoices, total, err := s.invoiceRepo.List(ctx, repository.InvoiceListFilter{
			Status:    filter.Status,
			ClientID:  filter.ClientID,
			InvoiceNo: filter.InvoiceNo,
			Page:      filter.Page,
			Limit:     filter.Limit,
		})
		if err != nil {
			return InvoiceListResponse{}, fmt.Errorf("failed to list invoices: %w", err)
		}
		items := make([]InvoiceResponse, 0, len(invoices))
		for _, inv := range invoices {
			items = append(items, toInvoiceResponse(inv, false))
		}
		return InvoiceListResponse{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Items, res.Total, nil
}

// --- Lifecycle ---

func (s *invoiceService) SubmitInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	return s.transition(ctx, id, userID, model.ActionSubmitInvoice, nil,
		[]string{model.InvoiceStatusDraft, model.InvoiceStatusRejected},
		func(_ context.Context, inv *model.Invoice) error {
			now := s.opts.Now()
			inv.Status = model.InvoiceStatusPendingApproval
			inv.SubmittedAt = &now
			return nil
		})
}

// ApproveInvoice approves a pending invoice. An invoice fully covered by a
// retainer has nothing left to collect and goes straight to paid.
func (s *invoiceService) ApproveInvoice(ctx context.Context, id string, req ReviewRequest, userID string) (InvoiceResponse, error) {
	return s.transition(ctx, id, userID, model.ActionApproveInvoice, req,
		[]string{model.InvoiceStatusPendingApproval},
		func(_ context.Context, inv *model.Invoice) error {
			now := s.opts.Now()
			inv.Status = model.InvoiceStatusApproved
			if !inv.BalanceDue.IsPositive() {
				inv.Status = model.InvoiceStatusPaid
			}
			inv.ApprovedBy = userRef(userID)
			inv.ApprovedAt = &now
			inv.ReviewNote = req.Note
			return nil
		})
}

func (s *invoiceService) RejectInvoice(ctx context.Context, id string, req RejectRequest, userID string) (InvoiceResponse, error) {
	return s.transition(ctx, id, userID, model.ActionRejectInvoice, req,
		[]string{model.InvoiceStatusPendingApproval},
		func(_ context.Context, inv *model.Invoice) error {
			now := s.opts.Now()
			inv.Status = model.InvoiceStatusRejected
			inv.ApprovedBy = userRef(userID)
			inv.ApprovedAt = &now
			inv.ReviewNote = req.Note
			return nil
		})
}

// RecordPayment books money against an approved invoice. Payments above the
// balance due are rejected.
func (s *invoiceService) RecordPayment(ctx context.Context, id string, req PaymentRequest, userID string) (InvoiceResponse, error) {
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return InvoiceResponse{}, err
	}
	paidAt := s.opts.Now()
	if req.PaidAt != "" {
		paidAt, err = time.Parse(dateLayout, req.PaidAt)
		if err != nil {
			return InvoiceResponse{}, invalidInput("invalid paid_at date format (expected YYYY-MM-DD)")
		}
	}

	return s.transition(ctx, id, userID, model.ActionRecordPayment, req,
		[]string{model.InvoiceStatusApproved, model.InvoiceStatusPartial},
		func(txCtx context.Context, inv *model.Invoice) error {
			if amount.GreaterThan(inv.BalanceDue) {
				return invalidInput("payment %s exceeds balance due %s", money(amount), money(inv.BalanceDue))
			}
			if err := s.invoiceRepo.AddPayment(txCtx, &model.InvoicePayment{
				InvoiceID: inv.ID,
				Amount:    amount,
				Method:    req.Method,
				Reference: req.Reference,
				PaidAt:    paidAt,
				Note:      req.Note,
			}); err != nil {
				return fmt.Errorf("failed to record payment: %w", err)
			}
			inv.AmountPaid = inv.AmountPaid.Add(amount)
			inv.BalanceDue = inv.BalanceDue.Sub(amount)
			inv.Status = model.InvoiceStatusPartial
			if inv.BalanceDue.IsZero() {
				inv.Status = model.InvoiceStatusPaid
			}
			return nil
		})
}

// VoidInvoice cancels any invoice that is not fully paid and returns its
// retainer application. Recorded payments stay on the invoice.
func (s *invoiceService) VoidInvoice(ctx context.Context, id string, req VoidRequest, userID string) (InvoiceResponse, error) {
	return s.transition(ctx, id, userID, model.ActionVoidInvoice, req,
		[]string{
			model.InvoiceStatusDraft, model.InvoiceStatusPendingApproval, model.InvoiceStatusApproved,
			model.InvoiceStatusRejected, model.InvoiceStatusPartial,
		},
		func(txCtx context.Context, inv *model.Invoice) error {
			if inv.RetainerID != nil {
				if err := s.releaseRetainer(txCtx, inv, "Released by void of "+inv.InvoiceNo); err != nil {
					return err
				}
			}
			inv.Status = model.InvoiceStatusVoid
			inv.VoidReason = req.Reason
			return nil
		})
}

// transition locks the invoice, checks the current status, applies fn and
// persists the header in one transaction.
func (s *invoiceService) transition(
	ctx context.Context,
	id, userID, action string,
	details interface{},
	allowed []string,
	fn func(context.Context, *model.Invoice) error,
) (InvoiceResponse, error) {
	invoiceID, err := parseID(id, "invoice")
	if err != nil {
		return InvoiceResponse{}, err
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.lockInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		invoice = inv
		if !lo.Contains(allowed, inv.Status) {
			return invalidState("invoice %s is %s", inv.InvoiceNo, inv.Status)
		}
		from := inv.Status
		if err := fn(txCtx, inv); err != nil {
			return err
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		writeAuditLog(txCtx, s.auditRepo, userID, action, inv.ID.String(), inv.InvoiceNo, map[string]interface{}{
			"from":    from,
			"to":      inv.Status,
			"details": details,
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.invalidateInvoice(ctx, invoice, nil)
	return s.GetInvoice(ctx, invoice.ID.String())
}

// --- Helpers ---

func (s *invoiceService) draft(req InvoiceDraftRequest) (calculator.Draft, validation.Result) {
	draft, problems := req.toDraft(s.today(), s.opts.Currency)
	problems = append(problems, validation.ValidateDraft(draft)...)
	return draft, problems
}

func (s *invoiceService) today() time.Time {
	y, m, d := s.opts.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// applyVATRate pins the draft to the rate active on its issue date.
func (s *invoiceService) applyVATRate(ctx context.Context, d *calculator.Draft) (*model.TaxRule, error) {
	date := d.IssueDate
	if date.IsZero() {
		date = s.today()
	}
	rate, rule, err := activeVATRate(ctx, s.taxRuleRepo, date)
	if err != nil {
		return nil, err
	}
	d.VATRate = &rate
	return rule, nil
}

// findRetainer resolves the retainer a draft draws from. Problems with the
// reference are reported as checklist entries rather than errors.
func (s *invoiceService) findRetainer(ctx context.Context, d calculator.Draft, lock bool) (*model.Retainer, validation.Result, error) {
	if d.RetainerID == "" {
		return nil, nil, nil
	}
	var problems validation.Result
	reject := func(msg string) (*model.Retainer, validation.Result, error) {
		problems = append(problems, validation.FieldError{Field: "retainer_id", Message: msg})
		return nil, problems, nil
	}

	id, err := uuid.Parse(d.RetainerID)
	if err != nil {
		return reject("invalid retainer reference")
	}

	find := s.retainerRepo.FindByID
	if lock {
		find = s.retainerRepo.FindByIDForUpdate
	}
	retainer, err := find(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return reject("retainer not found")
		}
		return nil, nil, fmt.Errorf("failed to fetch retainer: %w", err)
	}
	if retainer.ClientID != d.ClientID {
		return reject("retainer belongs to another client")
	}
	if !strings.EqualFold(retainer.Currency, d.Currency) {
		return reject(fmt.Sprintf("retainer currency %s does not match invoice currency %s", retainer.Currency, d.Currency))
	}
	return retainer, nil, nil
}

func availableBalance(r *model.Retainer) decimal.Decimal {
	if r == nil || r.Status != model.RetainerStatusActive {
		return decimal.Zero
	}
	return r.CurrentBalance
}

func (s *invoiceService) releaseRetainer(ctx context.Context, inv *model.Invoice, desc string) error {
	retainer, err := s.retainerRepo.FindByIDForUpdate(ctx, *inv.RetainerID)
	if err != nil {
		return fmt.Errorf("failed to fetch retainer: %w", err)
	}
	if _, err := s.ledger.release(ctx, retainer, inv.ID, desc); err != nil {
		return err
	}
	return nil
}

func (s *invoiceService) lockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("invoice")
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) loadDetails(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.invoiceRepo.FindByIDWithDetails(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, notFound("invoice")
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return inv, nil
}

func (s *invoiceService) invalidateInvoice(ctx context.Context, inv *model.Invoice, previousRetainer *uuid.UUID) {
	targets := map[string][]string{invalidation.ResourceInvoice: {inv.ID.String()}}
	var retainers []string
	if inv.RetainerID != nil {
		retainers = append(retainers, inv.RetainerID.String())
	}
	if previousRetainer != nil && (inv.RetainerID == nil || *previousRetainer != *inv.RetainerID) {
		retainers = append(retainers, previousRetainer.String())
	}
	if len(retainers) > 0 {
		targets[invalidation.ResourceRetainer] = retainers
	}
	invalidate(ctx, s.bus, targets)
}

func userRef(userID string) *uuid.UUID {
	parsed, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	return &parsed
}

func validStatus(status string) bool {
	return lo.Contains(model.InvoiceStatuses, status)
}
