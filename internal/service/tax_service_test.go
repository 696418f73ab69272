package service

import (
	"context"
	"testing"
	"time"

	"billing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActiveVATRate_Default(t *testing.T) {
	env := newTestEnv(t)

	rate, err := env.taxes.GetActiveVATRate(context.Background(), testNow)
	require.NoError(t, err)
	assert.True(t, rate.Default)
	assert.Equal(t, "0.1500", rate.Rate)
	assert.Equal(t, "2026-01-10", rate.Date)
	assert.Empty(t, rate.RuleID)
}

func TestTaxRules_CreateOverlapAndActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.taxes.CreateTaxRule(ctx, TaxRuleRequest{
		TaxType:       model.TaxTypeVATStandard,
		Rate:          "0.05",
		EffectiveFrom: "2017-01-01",
		EffectiveTo:   "2020-06-30",
	}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "0.0500", first.Rate)
	require.NotNil(t, first.EffectiveTo)

	_, err = env.taxes.CreateTaxRule(ctx, TaxRuleRequest{
		TaxType:       model.TaxTypeVATStandard,
		Rate:          "0.15",
		EffectiveFrom: "2020-01-01",
	}, env.adminID)
	assert.ErrorIs(t, err, ErrConflict)

	current, err := env.taxes.CreateTaxRule(ctx, TaxRuleRequest{
		TaxType:       model.TaxTypeVATStandard,
		Rate:          "0.15",
		EffectiveFrom: "2020-07-01",
	}, env.adminID)
	require.NoError(t, err)

	rate, err := env.taxes.GetActiveVATRate(ctx, time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "0.0500", rate.Rate)
	assert.Equal(t, first.ID, rate.RuleID)

	rate, err = env.taxes.GetActiveVATRate(ctx, testNow)
	require.NoError(t, err)
	assert.False(t, rate.Default)
	assert.Equal(t, current.ID, rate.RuleID)

	rules, err := env.taxes.GetTaxRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, current.ID, rules[0].ID, "newest effective date first")
}

func TestTaxRules_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rule, err := env.taxes.CreateTaxRule(ctx, TaxRuleRequest{TaxType: model.TaxTypeVATStandard, Rate: "0.15", EffectiveFrom: "2026-01-01"}, env.adminID)
	require.NoError(t, err)

	// Cache the active rate so the update has something to invalidate.
	rate, err := env.taxes.GetActiveVATRate(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, "0.1500", rate.Rate)

	updated, err := env.taxes.UpdateTaxRule(ctx, rule.ID, TaxRuleRequest{TaxType: model.TaxTypeVATStandard, Rate: "0.1", EffectiveFrom: "2026-01-01"}, env.adminID)
	require.NoError(t, err)
	assert.Equal(t, "0.1000", updated.Rate)

	rate, err = env.taxes.GetActiveVATRate(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, "0.1000", rate.Rate)

	_, err = env.taxes.UpdateTaxRule(ctx, rule.ID, TaxRuleRequest{TaxType: model.TaxTypeVATStandard, Rate: "1.5", EffectiveFrom: "2026-01-01"}, env.adminID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, env.taxes.DeleteTaxRule(ctx, rule.ID, env.adminID))
	rate, err = env.taxes.GetActiveVATRate(ctx, testNow)
	require.NoError(t, err)
	assert.True(t, rate.Default)

	err = env.taxes.DeleteTaxRule(ctx, rule.ID, env.adminID)
	assert.ErrorIs(t, err, ErrNotFound)
}
