package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printledger/internal/errs"
	"printledger/internal/model"
)

func TestGrantSubsidyTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "s1")
	req := GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "2025-HK1", Amount: 20000}

	grant, err := f.subsidies.GrantSubsidy(ctx, req)
	require.NoError(t, err)
	assert.True(t, grant.Granted)
	assert.NotNil(t, grant.GrantedAt)

	_, err = f.subsidies.GrantSubsidy(ctx, req)
	require.Error(t, err)
	assert.True(t, errs.IsDuplicate(err))

	entries := f.entriesFor(t, model.RecordKindSubsidyGrant, grant.ID)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 20000, entries[0].Amount)
	assert.Equal(t, model.SourceKindSubsidy, entries[0].SourceKind)
	assert.EqualValues(t, 20000, f.balance(t, acc.ID))
}

func TestGrantScheduledSubsidy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "s1")
	req := GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "2025-HK2", Amount: 30000}

	scheduled, err := f.subsidies.ScheduleSubsidy(ctx, req)
	require.NoError(t, err)
	assert.False(t, scheduled.Granted)
	assert.Zero(t, f.balance(t, acc.ID))

	_, err = f.subsidies.ScheduleSubsidy(ctx, req)
	assert.True(t, errs.IsDuplicate(err))

	_, err = f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "2025-HK2", Amount: 1})
	assert.True(t, errs.IsValidation(err))
	assert.Zero(t, f.balance(t, acc.ID))

	grant, err := f.subsidies.GrantSubsidy(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, scheduled.ID, grant.ID)
	assert.EqualValues(t, 30000, f.balance(t, acc.ID))

	_, err = f.subsidies.GrantSubsidy(ctx, req)
	assert.True(t, errs.IsDuplicate(err))
	assert.EqualValues(t, 30000, f.balance(t, acc.ID))
}

func TestSubsidyPeriodsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, "a")
	b := f.account(t, "b")

	for _, req := range []GrantSubsidyRequest{
		{AccountID: a.ID, PeriodID: "P1", Amount: 1000},
		{AccountID: a.ID, PeriodID: "P2", Amount: 2000},
		{AccountID: b.ID, PeriodID: "P1", Amount: 4000},
	} {
		_, err := f.subsidies.GrantSubsidy(ctx, req)
		require.NoError(t, err)
	}

	assert.EqualValues(t, 3000, f.balance(t, a.ID))
	assert.EqualValues(t, 4000, f.balance(t, b.ID))
}

func TestGrantSubsidyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "s1")

	_, err := f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "P", Amount: -1})
	assert.True(t, errs.IsValidation(err))

	_, err = f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "", Amount: 10})
	assert.True(t, errs.IsValidation(err))

	_, err = f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: 999, PeriodID: "P", Amount: 10})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGrantZeroSubsidy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.account(t, "s1")

	grant, err := f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "P0", Amount: 0})
	require.NoError(t, err)
	assert.True(t, grant.Granted)
	assert.Empty(t, f.entriesFor(t, model.RecordKindSubsidyGrant, grant.ID))
	assert.Zero(t, f.balance(t, acc.ID))

	// 零额发放同样占用该学期
	_, err = f.subsidies.GrantSubsidy(ctx, GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "P0", Amount: 0})
	assert.True(t, errs.IsDuplicate(err))
}
