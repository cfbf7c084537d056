package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"printledger/internal/errs"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
	"printledger/internal/service"
)

func TestReconcilerCleanLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acc := e.account(t, "s1")

	_, err := e.subsidies.GrantSubsidy(ctx, service.GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "P1", Amount: 20000})
	require.NoError(t, err)
	topup, err := e.topups.CreateTopup(ctx, service.CreateTopupRequest{AccountID: acc.ID, Amount: 100000})
	require.NoError(t, err)
	_, err = e.topups.CompleteTopup(ctx, topup.ID)
	require.NoError(t, err)

	job := e.job(t, acc.ID, 100)
	payment, err := e.payments.CreatePayment(ctx, job.ID)
	require.NoError(t, err)
	_, err = e.payments.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)
	_, err = e.refunds.RefundJob(ctx, service.RefundRequest{JobID: job.ID, UnitsDelivered: 33})
	require.NoError(t, err)

	// 未完成的单据不产生流水，也不算不一致
	pending := e.job(t, acc.ID, 5)
	_, err = e.payments.CreatePayment(ctx, pending.ID)
	require.NoError(t, err)

	violations, err := NewReconciler(e.db, e.cfg.Business.ReconcileInterval, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestReconcilerReportsMismatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acc := e.account(t, "s1")

	// 绕过 service 直接把充值单改成 COMPLETED，没有流水
	topup, err := e.topups.CreateTopup(ctx, service.CreateTopupRequest{AccountID: acc.ID, Amount: 5000})
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&model.Topup{}).
		Where("id = ?", topup.ID).
		Update("status", model.TopupStatusCompleted).Error)

	// 指向 PENDING 支付单的扣款流水
	job := e.job(t, acc.ID, 1)
	payment, err := e.payments.CreatePayment(ctx, job.ID)
	require.NoError(t, err)
	orphan := ledger.NewEntry(acc.ID, 500, model.SourceKindCharge, model.RecordKindPayment, payment.ID, "manual")
	require.NoError(t, repository.NewLedgerRepository(e.db).Create(ctx, nil, []*model.LedgerEntry{orphan}))

	violations, err := NewReconciler(e.db, e.cfg.Business.ReconcileInterval, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	for _, v := range violations {
		assert.True(t, errs.IsInvariantViolation(v))
	}
	assert.Contains(t, violations[0].Detail, topup.TopupNo)
	assert.Contains(t, violations[1].Detail, orphan.EntryNo)

	// 只报告不修复
	var count int64
	require.NoError(t, e.db.Model(&model.LedgerEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReconcilerAcceptsCompensations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acc := e.account(t, "s1")

	topup, err := e.topups.CreateTopup(ctx, service.CreateTopupRequest{AccountID: acc.ID, Amount: 100000})
	require.NoError(t, err)
	_, err = e.topups.CompleteTopup(ctx, topup.ID)
	require.NoError(t, err)

	entries, err := repository.NewLedgerRepository(e.db).ListBySource(ctx, nil, model.RecordKindTopup, topup.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// 冲正赠送部分
	_, err = e.corrections.CorrectEntry(ctx, service.CorrectEntryRequest{EntryNo: entries[1].EntryNo, Reason: "赠送规则配置错误"})
	require.NoError(t, err)

	violations, err := NewReconciler(e.db, e.cfg.Business.ReconcileInterval, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestReconcilerReportsForgedCompensation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acc := e.account(t, "s1")

	_, err := e.subsidies.GrantSubsidy(ctx, service.GrantSubsidyRequest{AccountID: acc.ID, PeriodID: "P1", Amount: 20000})
	require.NoError(t, err)
	repo := repository.NewLedgerRepository(e.db)
	grants, err := repo.ListAfterID(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	original := grants[0]

	// 金额与原流水不相反
	forged := ledger.NewEntry(acc.ID, -5000, original.SourceKind, original.SourceRecordKind, original.SourceRecordID, "manual")
	forged.CompensatesID = &original.ID
	require.NoError(t, repo.Create(ctx, nil, []*model.LedgerEntry{forged}))

	violations, err := NewReconciler(e.db, e.cfg.Business.ReconcileInterval, zap.NewNop()).Run(ctx)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].Detail, forged.EntryNo)
}
