package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"billing/internal/invalidation"
	"billing/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewInvoice_ValidDraft(t *testing.T) {
	env := newTestEnv(t)
	req := consultingDraft()
	req.Installments = &InstallmentPlanRequest{Count: 3, Frequency: "monthly"}

	preview, err := env.invoices.PreviewInvoice(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, preview.Valid)
	assert.Empty(t, preview.Problems)
	assert.Equal(t, "500.00", preview.Totals.Subtotal)
	assert.Equal(t, "50.00", preview.Totals.InvoiceDiscount)
	assert.Equal(t, "450.00", preview.Totals.TaxableAmount)
	assert.Equal(t, "0.1500", preview.Totals.VATRate)
	assert.Equal(t, "67.50", preview.Totals.VATAmount)
	assert.Equal(t, "517.50", preview.Totals.Total)
	assert.Equal(t, "517.50", preview.Totals.BalanceDue)
	assert.Equal(t, "2026-02-09", preview.DueDate)

	require.Len(t, preview.Items, 2)
	assert.Equal(t, "0.00", preview.Items[1].LineTotal, "comment rows carry no money")

	require.Len(t, preview.Installments, 3)
	assert.Equal(t, "172.50", preview.Installments[0].Amount)
	assert.Equal(t, "2026-02-09", preview.Installments[0].DueDate)
	assert.Equal(t, "2026-04-09", preview.Installments[2].DueDate)
}

func TestPreviewInvoice_InvalidDraftStillReturnsTotals(t *testing.T) {
	env := newTestEnv(t)
	req := consultingDraft()
	req.ClientID = ""
	req.ClientVATNumber = "12345"
	req.Installments = &InstallmentPlanRequest{Count: 2, Frequency: "monthly"}

	preview, err := env.invoices.PreviewInvoice(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, preview.Valid)
	assert.Equal(t, []string{"client_id", "client_vat_number"}, preview.Problems.Fields())
	assert.Equal(t, "517.50", preview.Totals.Total)
	assert.Empty(t, preview.Installments)
}

func TestPreviewInvoice_UsesActiveTaxRule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.taxes.CreateTaxRule(ctx, TaxRuleRequest{TaxType: model.TaxTypeVATStandard, Rate: "0.05", EffectiveFrom: "2026-01-01"}, env.adminID)
	require.NoError(t, err)

	preview, err := env.invoices.PreviewInvoice(ctx, consultingDraft())
	require.NoError(t, err)
	assert.Equal(t, "0.0500", preview.Totals.VATRate)
	assert.Equal(t, "22.50", preview.Totals.VATAmount)
	assert.Equal(t, "472.50", preview.Totals.Total)
}

func TestCreateInvoice_RejectsInvalidDraft(t *testing.T) {
	env := newTestEnv(t)
	req := consultingDraft()
	req.Items = []LineItemRequest{{Type: "comment", Description: "nothing billable"}}
	req.IssueDate = "10/01/2026"

	_, err := env.invoices.CreateInvoice(context.Background(), req, env.adminID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Problems.Fields(), "issue_date")
	assert.Contains(t, vErr.Problems.Fields(), "items")
}

func TestCreateInvoice_PersistsTotalsAndSchedule(t *testing.T) {
	env := newTestEnv(t)
	req := consultingDraft()
	req.Installments = &InstallmentPlanRequest{Count: 2, Frequency: "biweekly", StartDate: "2026-01-15"}

	inv, err := env.invoices.CreateInvoice(context.Background(), req, env.adminID)
	require.NoError(t, err)

	assert.Equal(t, "INV-20260110-00001", inv.InvoiceNo)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "net_30", inv.PaymentTerms)
	assert.Equal(t, "517.50", inv.Totals.Total)
	assert.Equal(t, "five hundred seventeen riyals and fifty halalas", inv.Totals.TotalInWords)
	require.Len(t, inv.Items, 2)
	require.Len(t, inv.Installments, 2)
	assert.Equal(t, "258.75", inv.Installments[0].Amount)
	assert.Equal(t, "2026-01-29", inv.Installments[1].DueDate)

	second, err := env.invoices.CreateInvoice(context.Background(), consultingDraft(), env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "INV-20260110-00002", second.InvoiceNo)
}

func TestCreateInvoice_AppliesRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	retainer := env.createRetainer(t, "200")

	req := consultingDraft()
	req.RetainerID = retainer.ID
	req.RetainerAmount = "300"

	inv, err := env.invoices.CreateInvoice(ctx, req, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", inv.Totals.AppliedRetainer, "capped by the available balance")
	assert.Equal(t, "317.50", inv.Totals.BalanceDue)

	got, err := env.retainers.GetRetainer(ctx, retainer.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", got.CurrentBalance)
	assert.Equal(t, model.RetainerStatusDepleted, got.Status)

	history, err := env.retainers.GetHistory(ctx, retainer.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RetainerTxConsumption, history[1].Type)
	require.NotNil(t, history[1].InvoiceID)
	assert.Equal(t, inv.ID, *history[1].InvoiceID)
}

func TestCreateInvoice_RetainerOfAnotherClient(t *testing.T) {
	env := newTestEnv(t)
	retainer := env.createRetainer(t, "200")

	req := consultingDraft()
	req.ClientID = "client-2"
	req.RetainerID = retainer.ID
	req.RetainerAmount = "50"

	_, err := env.invoices.CreateInvoice(context.Background(), req, env.adminID)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"retainer_id"}, vErr.Problems.Fields())
}

func TestInvoiceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv, err := env.invoices.CreateInvoice(ctx, consultingDraft(), env.adminID)
	require.NoError(t, err)

	_, err = env.invoices.ApproveInvoice(ctx, inv.ID, ReviewRequest{}, env.adminID)
	require.ErrorIs(t, err, ErrInvalidState, "drafts must be submitted first")

	inv, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPendingApproval, inv.Status)
	assert.NotNil(t, inv.SubmittedAt)

	_, err = env.invoices.UpdateInvoice(ctx, inv.ID, consultingDraft(), env.adminID)
	require.ErrorIs(t, err, ErrInvalidState, "pending invoices are locked")

	inv, err = env.invoices.ApproveInvoice(ctx, inv.ID, ReviewRequest{Note: "ok"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusApproved, inv.Status)
	assert.Equal(t, "admin", inv.ApproverName)

	_, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentRequest{Amount: "600"}, env.adminID)
	require.ErrorIs(t, err, ErrInvalidInput)

	inv, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentRequest{Amount: "17.50", Method: "cash"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPartial, inv.Status)
	assert.Equal(t, "500.00", inv.Totals.BalanceDue)
	assert.Equal(t, "17.50", inv.AmountPaid)

	inv, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentRequest{Amount: "500", PaidAt: "2026-01-20"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "0.00", inv.Totals.BalanceDue)
	require.Len(t, inv.Payments, 2)

	_, err = env.invoices.VoidInvoice(ctx, inv.ID, VoidRequest{Reason: "duplicate"}, env.adminID)
	require.ErrorIs(t, err, ErrInvalidState, "paid invoices cannot be voided")

	logs, total, err := env.audit.GetAuditLogs(ctx, AuditLogFilter{EntityID: inv.ID, Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Equal(t, model.ActionRecordPayment, logs[0].Action)
	assert.Equal(t, "admin", logs[0].Username)

	_, total, err = env.audit.GetAuditLogs(ctx, AuditLogFilter{Action: model.ActionApproveInvoice, Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRejectThenResubmit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv, err := env.invoices.CreateInvoice(ctx, consultingDraft(), env.adminID)
	require.NoError(t, err)
	_, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)

	inv, err = env.invoices.RejectInvoice(ctx, inv.ID, RejectRequest{Note: "wrong rate"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusRejected, inv.Status)
	assert.Equal(t, "wrong rate", inv.ReviewNote)

	req := consultingDraft()
	req.Items[0].UnitPrice = "120"
	inv, err = env.invoices.UpdateInvoice(ctx, inv.ID, req, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "540.00", inv.Totals.TaxableAmount)
	assert.Equal(t, "621.00", inv.Totals.Total)
	assert.Equal(t, model.InvoiceStatusRejected, inv.Status)

	inv, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPendingApproval, inv.Status)
}

func TestApproveFullyCoveredInvoiceIsPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	retainer := env.createRetainer(t, "1000")

	req := consultingDraft()
	req.RetainerID = retainer.ID
	req.RetainerAmount = "1000"
	inv, err := env.invoices.CreateInvoice(ctx, req, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "517.50", inv.Totals.AppliedRetainer, "capped by the invoice total")
	assert.Equal(t, "0.00", inv.Totals.BalanceDue)

	_, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)
	inv, err = env.invoices.ApproveInvoice(ctx, inv.ID, ReviewRequest{}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
}

func TestUpdateInvoice_ReappliesRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	retainer := env.createRetainer(t, "1000")

	req := consultingDraft()
	req.RetainerID = retainer.ID
	req.RetainerAmount = "300"
	inv, err := env.invoices.CreateInvoice(ctx, req, env.adminID)
	require.NoError(t, err)

	req.RetainerAmount = "100"
	inv, err = env.invoices.UpdateInvoice(ctx, inv.ID, req, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", inv.Totals.AppliedRetainer)
	assert.Equal(t, "417.50", inv.Totals.BalanceDue)

	got, err := env.retainers.GetRetainer(ctx, retainer.ID)
	require.NoError(t, err)
	assert.Equal(t, "900.00", got.CurrentBalance)

	history, err := env.retainers.GetHistory(ctx, retainer.ID)
	require.NoError(t, err)
	types := make([]string, 0, len(history))
	for _, h := range history {
		types = append(types, h.Type)
	}
	assert.Equal(t, []string{model.RetainerTxDeposit, model.RetainerTxConsumption, model.RetainerTxRelease, model.RetainerTxConsumption}, types)
}

func TestVoidInvoice_ReleasesRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	retainer := env.createRetainer(t, "200")

	req := consultingDraft()
	req.RetainerID = retainer.ID
	req.RetainerAmount = "200"
	inv, err := env.invoices.CreateInvoice(ctx, req, env.adminID)
	require.NoError(t, err)

	got, err := env.retainers.GetRetainer(ctx, retainer.ID)
	require.NoError(t, err)
	require.Equal(t, model.RetainerStatusDepleted, got.Status)

	inv, err = env.invoices.VoidInvoice(ctx, inv.ID, VoidRequest{Reason: "client cancelled"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusVoid, inv.Status)
	assert.Equal(t, "client cancelled", inv.VoidReason)

	got, err = env.retainers.GetRetainer(ctx, retainer.ID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", got.CurrentBalance)
	assert.Equal(t, model.RetainerStatusActive, got.Status)

	_, err = env.invoices.VoidInvoice(ctx, inv.ID, VoidRequest{Reason: "again"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVoidInvoice_RefundedRetainerStaysAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	retainer := env.createRetainer(t, "500")

	req := consultingDraft()
	req.RetainerID = retainer.ID
	req.RetainerAmount = "200"
	inv, err := env.invoices.CreateInvoice(ctx, req, env.adminID)
	require.NoError(t, err)

	got, err := env.retainers.RefundRetainer(ctx, retainer.ID, RefundRetainerRequest{}, env.adminID)
	require.NoError(t, err)
	require.Equal(t, "0.00", got.CurrentBalance)

	_, err = env.invoices.VoidInvoice(ctx, inv.ID, VoidRequest{Reason: "client cancelled"}, env.adminID)
	require.NoError(t, err)

	got, err = env.retainers.GetRetainer(ctx, retainer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RetainerStatusRefunded, got.Status)
	assert.Equal(t, "0.00", got.CurrentBalance)

	history, err := env.retainers.GetHistory(ctx, retainer.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	refunded := decimal.Zero
	var releases int
	for _, h := range history {
		switch h.Type {
		case model.RetainerTxRefund:
			refunded = refunded.Add(decimal.RequireFromString(h.Amount))
		case model.RetainerTxRelease:
			releases++
		}
	}
	assert.Equal(t, 1, releases)
	assert.Equal(t, "500.00", refunded.StringFixed(2))

	_, err = env.retainers.ReplenishRetainer(ctx, retainer.ID, RetainerMovementRequest{Amount: "10"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGetInvoice_CacheIsInvalidatedOnMutation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv, err := env.invoices.CreateInvoice(ctx, consultingDraft(), env.adminID)
	require.NoError(t, err)

	_, err = env.store.Get(ctx, invalidation.InvoiceDetailKey(inv.ID))
	require.NoError(t, err, "detail should be cached after create")

	list, total, err := env.invoices.ListInvoices(ctx, InvoiceFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.InvoiceStatusDraft, list[0].Status)

	before := env.publisher.count()
	_, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)
	require.Greater(t, env.publisher.count(), before)

	var ev invalidation.Event
	require.NoError(t, json.Unmarshal(env.publisher.messages[len(env.publisher.messages)-1], &ev))
	assert.Equal(t, "invalidate", ev.Type)
	assert.Contains(t, ev.Resources, invalidation.ResourceInvoice)

	list, _, err = env.invoices.ListInvoices(ctx, InvoiceFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPendingApproval, list[0].Status, "list must not serve the stale draft")

	_, _, err = env.invoices.ListInvoices(ctx, InvoiceFilter{Status: "BOGUS", Page: 1, Limit: 20})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetInvoice_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.invoices.GetInvoice(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = env.invoices.GetInvoice(ctx, "6f1c2a8e-8c1b-4b7e-9a55-0d6e4b1f2a10")
	assert.True(t, errors.Is(err, ErrNotFound))
}
