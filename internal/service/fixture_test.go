package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/config"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/testutil"
)

type fixture struct {
	db          *gorm.DB
	cfg         *config.Config
	ledger      *ledger.Ledger
	catalog     *CatalogService
	jobs        *JobService
	balances    *BalanceService
	topups      *TopupService
	subsidies   *SubsidyService
	payments    *PaymentService
	refunds     *RefundService
	corrections *CorrectionService

	funded int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := config.Default()
	locker := lock.NewLocalLocker()
	logger := zap.NewNop()
	topic := cfg.Kafka.Topic.LedgerEvents

	f := &fixture{
		db:          db,
		cfg:         cfg,
		ledger:      ledger.New(db),
		catalog:     NewCatalogService(db, locker, logger),
		jobs:        NewJobService(db, logger),
		balances:    NewBalanceService(db, cfg.Business.HistoryPageSize),
		topups:      NewTopupService(db, topic, logger),
		subsidies:   NewSubsidyService(db, topic, logger),
		payments:    NewPaymentService(db, locker, cfg, logger),
		refunds:     NewRefundService(db, locker, topic, logger),
		corrections: NewCorrectionService(db, locker, topic, logger),
	}
	require.NoError(t, f.catalog.SeedDefaults(context.Background()))
	return f
}

func (f *fixture) account(t *testing.T, userRef string) *model.Account {
	t.Helper()
	acc, err := f.balances.GetOrCreateAccount(context.Background(), userRef)
	require.NoError(t, err)
	return acc
}

// fund 用补贴入账，金额精确且不触发充值赠送
func (f *fixture) fund(t *testing.T, accountID, amount int64) {
	t.Helper()
	f.funded++
	_, err := f.subsidies.GrantSubsidy(context.Background(), GrantSubsidyRequest{
		AccountID: accountID,
		PeriodID:  fmt.Sprintf("fund-%d", f.funded),
		Amount:    amount,
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, accountID int64) int64 {
	t.Helper()
	b, err := f.balances.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

// bwJob A4 单面黑白，pages 页 1 份
func (f *fixture) bwJob(t *testing.T, accountID, pages int64) *model.PrintJob {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), CreateJobRequest{
		AccountID: accountID,
		FileRef:   "file-1",
		PriceRequest: PriceRequest{
			Pages:     pages,
			Copies:    1,
			ColorMode: model.ColorModeBW,
			SizeClass: model.SizeA4,
		},
	})
	require.NoError(t, err)
	return job
}

// paidJob 创建任务并用余额支付完成
func (f *fixture) paidJob(t *testing.T, accountID, pages int64) *model.PrintJob {
	t.Helper()
	ctx := context.Background()
	job := f.bwJob(t, accountID, pages)
	payment, err := f.payments.CreatePayment(ctx, job.ID)
	require.NoError(t, err)
	_, err = f.payments.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)
	job, err = f.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	return job
}

func (f *fixture) entriesFor(t *testing.T, kind string, id int64) []*model.LedgerEntry {
	t.Helper()
	entries, err := f.ledger.EntriesFor(context.Background(), nil, kind, id)
	require.NoError(t, err)
	return entries
}

// requireReconstructible 余额 == 全部流水之和
func (f *fixture) requireReconstructible(t *testing.T, accountID int64) {
	t.Helper()
	var (
		all   []*model.LedgerEntry
		total int64
	)
	for p := 1; ; p++ {
		page, err := f.balances.GetHistory(context.Background(), accountID, p)
		require.NoError(t, err)
		total = page.Total
		if len(page.Entries) == 0 {
			break
		}
		all = append(all, page.Entries...)
	}
	require.EqualValues(t, total, len(all))

	var sum int64
	for _, e := range all {
		sum += e.Amount
	}
	require.Equal(t, sum, f.balance(t, accountID))
}
