package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/infrastructure/lock"
	"printledger/internal/model"
)

// recordingLocker 记录当前持有的 key，其余行为交给内部 Locker
type recordingLocker struct {
	inner lock.Locker

	mu   sync.Mutex
	held map[string]int
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{inner: lock.NewLocalLocker(), held: make(map[string]int)}
}

func (l *recordingLocker) Obtain(ctx context.Context, key string) (lock.Unlocker, error) {
	unlock, err := l.inner.Obtain(ctx, key)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.held[key]++
	l.mu.Unlock()

	return func(ctx context.Context) error {
		l.mu.Lock()
		l.held[key]--
		l.mu.Unlock()
		return unlock(ctx)
	}, nil
}

func (l *recordingLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key] > 0
}

// guardDebits 在写入扣款/退款/更正流水前检查对应账户锁已被持有
func guardDebits(t *testing.T, db *gorm.DB, locker *recordingLocker) *[]string {
	t.Helper()
	var unguarded []string
	var mu sync.Mutex

	err := db.Callback().Create().Before("gorm:create").Register("test:account_lock_guard", func(tx *gorm.DB) {
		entries, ok := tx.Statement.Dest.(*[]*model.LedgerEntry)
		if !ok {
			return
		}
		for _, e := range *entries {
			if e.SourceKind != model.SourceKindCharge && e.SourceKind != model.SourceKindRefund && !e.IsCompensation() {
				continue
			}
			if !locker.isHeld(lock.AccountKey(e.AccountID)) {
				mu.Lock()
				unguarded = append(unguarded, e.SourceKind)
				mu.Unlock()
			}
		}
	})
	require.NoError(t, err)
	return &unguarded
}

func TestDebitsAppendUnderAccountLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := newRecordingLocker()
	logger := zap.NewNop()
	f.payments = NewPaymentService(f.db, locker, f.cfg, logger)
	f.refunds = NewRefundService(f.db, locker, f.cfg.Kafka.Topic.LedgerEvents, logger)
	f.corrections = NewCorrectionService(f.db, locker, f.cfg.Kafka.Topic.LedgerEvents, logger)
	unguarded := guardDebits(t, f.db, locker)

	acc := f.account(t, "s1")
	f.fund(t, acc.ID, 100000)

	job := f.paidJob(t, acc.ID, 10)
	require.NoError(t, f.jobs.MarkPrinting(ctx, job.ID))
	resp, err := f.refunds.RefundJob(ctx, RefundRequest{JobID: job.ID, UnitsDelivered: 5, Reason: "jam"})
	require.NoError(t, err)
	require.Positive(t, resp.Amount)

	charges := f.entriesFor(t, model.RecordKindPayment, mustPaymentID(t, f, job.ID))
	require.Len(t, charges, 1)
	_, err = f.corrections.CorrectEntry(ctx, CorrectEntryRequest{EntryNo: charges[0].EntryNo, Reason: "重复扣款"})
	require.NoError(t, err)

	assert.Empty(t, *unguarded)

	// 锁全部释放
	assert.False(t, locker.isHeld(lock.AccountKey(acc.ID)))
	assert.False(t, locker.isHeld(lock.JobRefundKey(job.ID)))
}

func TestCompletePaymentWaitsForAccountLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locker := newRecordingLocker()
	f.payments = NewPaymentService(f.db, locker, f.cfg, zap.NewNop())

	acc := f.account(t, "s1")
	f.fund(t, acc.ID, 50000)
	job := f.bwJob(t, acc.ID, 10)
	payment, err := f.payments.CreatePayment(ctx, job.ID)
	require.NoError(t, err)

	// 别处持有账户锁时，扣款必须等待而不是直接记账
	unlock, err := locker.Obtain(ctx, lock.AccountKey(acc.ID))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.payments.CompletePayment(ctx, payment.ID)
		done <- err
	}()

	assert.Never(t, func() bool { return len(done) > 0 }, 300*time.Millisecond, 10*time.Millisecond)
	assert.EqualValues(t, 50000, f.balance(t, acc.ID))

	require.NoError(t, unlock(ctx))
	require.NoError(t, <-done)
	assert.EqualValues(t, 40000, f.balance(t, acc.ID))
}

func mustPaymentID(t *testing.T, f *fixture, jobID int64) int64 {
	t.Helper()
	p, err := f.payments.paymentRepo.GetByJobID(context.Background(), nil, jobID)
	require.NoError(t, err)
	return p.ID
}
