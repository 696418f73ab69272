package service

import (
	"context"
	"testing"

	"billing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInvoiceStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	overdue := consultingDraft()
	overdue.IssueDate = "2025-11-01"
	inv, err := env.invoices.CreateInvoice(ctx, overdue, env.adminID)
	require.NoError(t, err)
	_, err = env.invoices.SubmitInvoice(ctx, inv.ID, env.adminID)
	require.NoError(t, err)
	_, err = env.invoices.ApproveInvoice(ctx, inv.ID, ReviewRequest{}, env.adminID)
	require.NoError(t, err)

	_, err = env.invoices.CreateInvoice(ctx, consultingDraft(), env.adminID)
	require.NoError(t, err)

	other := consultingDraft()
	other.ClientID = "client-2"
	_, err = env.invoices.CreateInvoice(ctx, other, env.adminID)
	require.NoError(t, err)

	stats, err := env.statistics.GetInvoiceStats(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, stats.ByStatus, len(model.InvoiceStatuses))
	assert.Equal(t, StatusStat{Status: model.InvoiceStatusDraft, Count: 1, TotalAmount: "517.50", BalanceDue: "517.50"}, stats.ByStatus[0])
	assert.EqualValues(t, 1, stats.ByStatus[2].Count)
	assert.Equal(t, "517.50", stats.TotalInvoiced, "drafts are not invoiced yet")
	assert.Equal(t, "517.50", stats.TotalOutstanding)
	assert.EqualValues(t, 1, stats.OverdueCount)
	assert.Equal(t, "517.50", stats.OverdueAmount)

	// A payment must show up despite the cached summary.
	_, err = env.invoices.RecordPayment(ctx, inv.ID, PaymentRequest{Amount: "17.50"}, env.adminID)
	require.NoError(t, err)
	stats, err = env.statistics.GetInvoiceStats(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", stats.TotalOutstanding)
	assert.EqualValues(t, 1, stats.ByStatus[4].Count)

	all, err := env.statistics.GetInvoiceStats(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.ByStatus[0].Count)
}
