package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printledger/internal/errs"
	"printledger/internal/model"
)

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.catalog.SeedDefaults(ctx))

	c, err := f.catalog.ActiveCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, c.BasePrices, 6)
	assert.Len(t, c.ColorMultipliers, 2)
	assert.Len(t, c.DiscountTiers, 3)
	assert.Len(t, c.TopupBonusTiers, 1)
}

func TestSetBasePriceSupersedesActiveRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.catalog.ActiveBasePrice(ctx, model.SizeA4, model.SidesSimplex)
	require.NoError(t, err)

	row, err := f.catalog.SetBasePrice(ctx, model.SizeA4, model.SidesSimplex, decimal.NewFromInt(1200))
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, row.ID)

	active, err := f.catalog.ActiveBasePrice(ctx, model.SizeA4, model.SidesSimplex)
	require.NoError(t, err)
	assert.Equal(t, row.ID, active.ID)
	assert.True(t, active.UnitPrice.Equal(decimal.NewFromInt(1200)))

	// 旧行停用但仍可按ID追溯
	var prev model.PageSizePrice
	require.NoError(t, f.db.First(&prev, old.ID).Error)
	assert.False(t, prev.IsActive)
	assert.NotNil(t, prev.DeactivatedAt)
	assert.True(t, prev.UnitPrice.Equal(decimal.NewFromInt(1000)))

	c, err := f.catalog.ActiveCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, c.BasePrices, 6)
}

func TestApplicableDiscountTierPicksHighestThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		units   int64
		percent string
	}{
		{99, ""},
		{100, "0.1"},
		{199, "0.1"},
		{250, "0.125"},
		{500, "0.2"},
		{10000, "0.2"},
	}
	for _, tt := range tests {
		tier, err := f.catalog.ApplicableDiscountTier(ctx, tt.units)
		require.NoError(t, err)
		if tt.percent == "" {
			assert.Nil(t, tier, "units=%d", tt.units)
			continue
		}
		require.NotNil(t, tier, "units=%d", tt.units)
		assert.True(t, tier.Percent.Equal(decimal.RequireFromString(tt.percent)), "units=%d got %s", tt.units, tier.Percent)
	}

	_, err := f.catalog.ApplicableDiscountTier(ctx, 0)
	assert.True(t, errs.IsValidation(err))
}

func TestSetDiscountTierReplacesSameThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.SetDiscountTier(ctx, "100 pages", 100, decimal.RequireFromString("0.15"))
	require.NoError(t, err)

	tier, err := f.catalog.ApplicableDiscountTier(ctx, 150)
	require.NoError(t, err)
	require.NotNil(t, tier)
	assert.True(t, tier.Percent.Equal(decimal.RequireFromString("0.15")))

	c, err := f.catalog.ActiveCatalog(ctx)
	require.NoError(t, err)
	assert.Len(t, c.DiscountTiers, 3)
}

func TestDeactivateDiscountTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tier, err := f.catalog.ApplicableDiscountTier(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, tier)

	require.NoError(t, f.catalog.DeactivateDiscountTier(ctx, tier.ID))

	tier, err = f.catalog.ApplicableDiscountTier(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, tier)

	err = f.catalog.DeactivateDiscountTier(ctx, 9999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCatalogSettersValidateInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.SetBasePrice(ctx, model.SizeA4, "TRIPLEX", decimal.NewFromInt(1000))
	assert.True(t, errs.IsValidation(err))

	_, err = f.catalog.SetBasePrice(ctx, model.SizeA4, model.SidesSimplex, decimal.Zero)
	assert.True(t, errs.IsValidation(err))

	_, err = f.catalog.SetColorMultiplier(ctx, model.ColorModeColor, decimal.NewFromInt(-1))
	assert.True(t, errs.IsValidation(err))

	_, err = f.catalog.SetDiscountTier(ctx, "all", 10, decimal.NewFromInt(1))
	assert.True(t, errs.IsValidation(err))

	_, err = f.catalog.SetDiscountTier(ctx, "none", 0, decimal.RequireFromString("0.1"))
	assert.True(t, errs.IsValidation(err))

	_, err = f.catalog.SetTopupBonusTier(ctx, "neg", 1000, decimal.RequireFromString("-0.1"))
	assert.True(t, errs.IsValidation(err))
}
