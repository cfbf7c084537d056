package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/model"
	"printledger/internal/testutil"
)

func newLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return New(db), db
}

func credit(accountID, amount int64) *model.LedgerEntry {
	return NewEntry(accountID, amount, model.SourceKindTopup, model.RecordKindTopup, 1, "test credit")
}

func debit(accountID, amount int64) *model.LedgerEntry {
	return NewEntry(accountID, -amount, model.SourceKindCharge, model.RecordKindPayment, 1, "test debit")
}

func TestNewEntryDirection(t *testing.T) {
	assert.Equal(t, model.DirectionIn, credit(1, 5).Direction)
	assert.Equal(t, model.DirectionOut, debit(1, 5).Direction)
	assert.Equal(t, int64(-5), debit(1, 5).Amount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.LedgerEntry)
	}{
		{"zero amount", func(e *model.LedgerEntry) { e.Amount = 0 }},
		{"IN with negative amount", func(e *model.LedgerEntry) { e.Amount = -10 }},
		{"OUT with positive amount", func(e *model.LedgerEntry) { e.Direction = model.DirectionOut }},
		{"unknown direction", func(e *model.LedgerEntry) { e.Direction = "SIDEWAYS" }},
		{"unknown source kind", func(e *model.LedgerEntry) { e.SourceKind = "GIFT" }},
		{"missing source record", func(e *model.LedgerEntry) { e.SourceRecordID = 0 }},
		{"missing account", func(e *model.LedgerEntry) { e.AccountID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := credit(1, 10)
			tt.mutate(e)
			assert.True(t, errs.IsValidation(Validate(e)))
		})
	}
	assert.NoError(t, Validate(credit(1, 10)))
}

func TestAppendRequiresEntries(t *testing.T) {
	l, _ := newLedger(t)
	err := l.Append(context.Background(), nil)
	assert.True(t, errs.IsValidation(err))
}

func TestBalanceIsSumOfHistory(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, nil, credit(1, 100000), credit(1, 10000)))
	require.NoError(t, l.Append(ctx, nil, debit(1, 35000)))
	require.NoError(t, l.Append(ctx, nil, credit(2, 500)))

	balance, err := l.Balance(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), balance)

	entries, total, err := l.History(ctx, 1, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	var sum int64
	for _, e := range entries {
		sum += e.Amount
		assert.Equal(t, int64(1), e.AccountID)
	}
	assert.Equal(t, balance, sum)

	// 最新的在前
	assert.Equal(t, int64(-35000), entries[0].Amount)
}

func TestHistoryPaging(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(ctx, nil, credit(3, int64(i))))
	}

	page1, total, err := l.History(ctx, 3, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(5), page1[0].Amount)

	page3, _, err := l.History(ctx, 3, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(1), page3[0].Amount)

	_, _, err = l.History(ctx, 3, 1, 0)
	assert.True(t, errs.IsValidation(err))
}

func TestAppendRejectsOverdraftAndRollsBack(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, nil, credit(1, 100)))

	err := l.Append(ctx, nil, debit(1, 150))
	var insufficient *errs.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(100), insufficient.Balance)
	assert.Equal(t, int64(150), insufficient.Required)

	balance, err := l.Balance(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	_, total, err := l.History(ctx, 1, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAppendIsAtomicWithCallerTransaction(t *testing.T) {
	l, db := newLedger(t)
	ctx := context.Background()

	boom := errors.New("business record write failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := l.Append(ctx, tx, credit(4, 500)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := l.Balance(ctx, nil, 4)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestCompensate(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	original := credit(5, 700)
	require.NoError(t, l.Append(ctx, nil, original))

	fix, err := l.Compensate(ctx, nil, original, "重复入账")
	require.NoError(t, err)
	assert.Equal(t, int64(-700), fix.Amount)
	assert.Equal(t, model.DirectionOut, fix.Direction)
	assert.Contains(t, fix.Description, original.EntryNo)

	balance, err := l.Balance(ctx, nil, 5)
	require.NoError(t, err)
	assert.Zero(t, balance)

	entries, err := l.EntriesFor(ctx, nil, model.RecordKindTopup, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	require.NotNil(t, fix.CompensatesID)
	assert.Equal(t, original.ID, *fix.CompensatesID)

	_, err = l.Compensate(ctx, nil, &model.LedgerEntry{}, "x")
	assert.True(t, errs.IsValidation(err))

	// 更正流水不能再被更正
	_, err = l.Compensate(ctx, nil, fix, "x")
	assert.True(t, errs.IsValidation(err))
}

func TestCompensateOnlyOnce(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	original := credit(6, 700)
	require.NoError(t, l.Append(ctx, nil, original))
	require.NoError(t, l.Append(ctx, nil, credit(6, 700)))

	_, err := l.Compensate(ctx, nil, original, "重复入账")
	require.NoError(t, err)

	_, err = l.Compensate(ctx, nil, original, "重复入账")
	assert.True(t, errs.IsDuplicate(err))

	balance, err := l.Balance(ctx, nil, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 700, balance)
}

func TestCompensateCannotOverdraw(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	original := credit(7, 700)
	require.NoError(t, l.Append(ctx, nil, original))
	require.NoError(t, l.Append(ctx, nil, debit(7, 500)))

	_, err := l.Compensate(ctx, nil, original, "误充")
	assert.True(t, errs.IsInsufficientFunds(err))

	balance, err := l.Balance(ctx, nil, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 200, balance)
}
