package service

import (
	"context"
	"testing"

	"billing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r, err := env.retainers.CreateRetainer(ctx, CreateRetainerRequest{
		ClientID:       "client-1",
		ClientName:     "Acme Trading",
		InitialAmount:  "1500",
		MinimumBalance: "200",
	}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "RET-20260110-00001", r.RetainerNo)
	assert.Equal(t, "SAR", r.Currency)
	assert.Equal(t, "1500.00", r.CurrentBalance)
	assert.Equal(t, model.RetainerStatusActive, r.Status)
	assert.False(t, r.LowBalance)

	_, err = env.retainers.CreateRetainer(ctx, CreateRetainerRequest{ClientID: "client-1", InitialAmount: "-5"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, total, err := env.retainers.ListRetainers(ctx, RetainerFilter{ClientID: "client-1", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, r.ID, list[0].ID)
}

func TestConsumeRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.retainers.CreateRetainer(ctx, CreateRetainerRequest{
		ClientID:       "client-1",
		InitialAmount:  "500",
		MinimumBalance: "100",
	}, env.adminID)
	require.NoError(t, err)

	got, err := env.retainers.ConsumeRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "450", Description: "Manual draw"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", got.CurrentBalance)
	assert.True(t, got.LowBalance)

	_, err = env.retainers.ConsumeRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "60"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidInput, "cannot draw more than the balance")

	got, err = env.retainers.ConsumeRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "50"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.RetainerStatusDepleted, got.Status)

	_, err = env.retainers.ConsumeRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "1"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidState)

	got, err = env.retainers.ReplenishRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "250"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.RetainerStatusActive, got.Status)
	assert.Equal(t, "250.00", got.CurrentBalance)

	history, err := env.retainers.GetHistory(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "Manual draw", history[1].Description)
	assert.Equal(t, "250.00", history[3].BalanceAfter)
}

func TestRefundRetainer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r := env.createRetainer(t, "300")

	got, err := env.retainers.RefundRetainer(ctx, r.ID, RefundRetainerRequest{}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, model.RetainerStatusRefunded, got.Status)
	assert.Equal(t, "0.00", got.CurrentBalance)

	_, err = env.retainers.RefundRetainer(ctx, r.ID, RefundRetainerRequest{}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.retainers.ReplenishRetainer(ctx, r.ID, RetainerMovementRequest{Amount: "10"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidState)

	history, err := env.retainers.GetHistory(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RetainerTxRefund, history[1].Type)
	assert.Equal(t, "300.00", history[1].Amount)
	assert.Equal(t, "Balance refunded to client", history[1].Description)
}

func TestGetRetainer_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.retainers.GetRetainer(context.Background(), "0b7d8f4e-4a61-4b1d-8d9e-2c1f3a5e6b70")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.retainers.GetHistory(context.Background(), "0b7d8f4e-4a61-4b1d-8d9e-2c1f3a5e6b70")
	assert.ErrorIs(t, err, ErrNotFound)
}
