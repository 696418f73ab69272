package repository

import (
	"context"
	"testing"

	"billing/internal/model"
	"billing/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetainerRepository_Transactions(t *testing.T) {
	ctx := context.Background()
	repo := NewRetainerRepository(testutil.OpenDB(t))

	r := &model.Retainer{
		RetainerNo:     "RET-20260110-00001",
		ClientID:       "c-1",
		Currency:       "SAR",
		InitialAmount:  decimal.NewFromInt(1000),
		CurrentBalance: decimal.NewFromInt(1000),
		Status:         model.RetainerStatusActive,
	}
	require.NoError(t, repo.Create(ctx, r))

	invoiceID := uuid.New()
	otherInvoice := uuid.New()
	for _, tx := range []model.RetainerTransaction{
		{RetainerID: r.ID, Type: model.RetainerTxDeposit, Amount: decimal.NewFromInt(1000), BalanceAfter: decimal.NewFromInt(1000)},
		{RetainerID: r.ID, Type: model.RetainerTxConsumption, Amount: decimal.NewFromInt(300), BalanceAfter: decimal.NewFromInt(700), InvoiceID: &invoiceID},
		{RetainerID: r.ID, Type: model.RetainerTxConsumption, Amount: decimal.NewFromInt(100), BalanceAfter: decimal.NewFromInt(600), InvoiceID: &otherInvoice},
		{RetainerID: r.ID, Type: model.RetainerTxRelease, Amount: decimal.NewFromInt(300), BalanceAfter: decimal.NewFromInt(900), InvoiceID: &invoiceID},
	} {
		tx := tx
		require.NoError(t, repo.AddTransaction(ctx, &tx))
	}

	history, err := repo.ListTransactions(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	linked, err := repo.FindInvoiceConsumption(ctx, r.ID, invoiceID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	types := []string{linked[0].Type, linked[1].Type}
	assert.ElementsMatch(t, []string{model.RetainerTxConsumption, model.RetainerTxRelease}, types)
}

func TestRetainerRepository_ListAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewRetainerRepository(testutil.OpenDB(t))

	for i, client := range []string{"c-1", "c-1", "c-2"} {
		require.NoError(t, repo.Create(ctx, &model.Retainer{
			RetainerNo:     "RET-20260110-0000" + string(rune('1'+i)),
			ClientID:       client,
			Currency:       "SAR",
			InitialAmount:  decimal.NewFromInt(100),
			CurrentBalance: decimal.NewFromInt(100),
			Status:         model.RetainerStatusActive,
		}))
	}

	list, total, err := repo.List(ctx, RetainerListFilter{ClientID: "c-1", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)

	locked, err := repo.FindByIDForUpdate(ctx, list[0].ID)
	require.NoError(t, err)
	locked.CurrentBalance = decimal.Zero
	locked.Status = model.RetainerStatusDepleted
	require.NoError(t, repo.Update(ctx, locked))

	_, total, err = repo.List(ctx, RetainerListFilter{Status: model.RetainerStatusDepleted, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	n, err := repo.CountByPrefix(ctx, "RET-20260110-")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
