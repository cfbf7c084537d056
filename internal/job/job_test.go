package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/config"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/model"
	"printledger/internal/service"
	"printledger/internal/testutil"
)

type env struct {
	db          *gorm.DB
	cfg         *config.Config
	balances    *service.BalanceService
	jobs        *service.JobService
	topups      *service.TopupService
	subsidies   *service.SubsidyService
	payments    *service.PaymentService
	refunds     *service.RefundService
	corrections *service.CorrectionService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := config.Default()
	locker := lock.NewLocalLocker()
	logger := zap.NewNop()
	topic := cfg.Kafka.Topic.LedgerEvents

	require.NoError(t, service.NewCatalogService(db, locker, logger).SeedDefaults(context.Background()))
	return &env{
		db:          db,
		cfg:         cfg,
		balances:    service.NewBalanceService(db, cfg.Business.HistoryPageSize),
		jobs:        service.NewJobService(db, logger),
		topups:      service.NewTopupService(db, topic, logger),
		subsidies:   service.NewSubsidyService(db, topic, logger),
		payments:    service.NewPaymentService(db, locker, cfg, logger),
		refunds:     service.NewRefundService(db, locker, topic, logger),
		corrections: service.NewCorrectionService(db, locker, topic, logger),
	}
}

func (e *env) account(t *testing.T, userRef string) *model.Account {
	t.Helper()
	acc, err := e.balances.GetOrCreateAccount(context.Background(), userRef)
	require.NoError(t, err)
	return acc
}

func (e *env) job(t *testing.T, accountID, pages int64) *model.PrintJob {
	t.Helper()
	job, err := e.jobs.CreateJob(context.Background(), service.CreateJobRequest{
		AccountID: accountID,
		PriceRequest: service.PriceRequest{
			Pages: pages, Copies: 1, ColorMode: model.ColorModeBW, SizeClass: model.SizeA4,
		},
	})
	require.NoError(t, err)
	return job
}
