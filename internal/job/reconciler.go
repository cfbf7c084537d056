package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/billing"
	"printledger/internal/errs"
	"printledger/internal/infrastructure/metrics"
	"printledger/internal/model"
	"printledger/internal/repository"
)

// 对账检查项，同时作为指标标签
const (
	CheckTopupEntries   = "topup_entries"
	CheckSubsidyEntries = "subsidy_entries"
	CheckPaymentEntries = "payment_entries"
	CheckRefundEntries  = "refund_entries"
	CheckOrphanEntries  = "orphan_entries"
	CheckCompensations  = "compensation_entries"
)

// Reconciler 账本与业务单据对账
//
// 【只发现，不修复】
// 不一致意味着原子性被破坏（绕过 service 直接改库、迁移脚本出错等），
// 自动修复可能掩盖真正的问题甚至二次记账，所以只记 Error 日志和指标，交给人工处理。
//
// 两个方向：
//  1. 单据 -> 账本：已完成的充值/已发放的补贴/已完成的支付/退款，流水合计必须与单据金额一致
//  2. 账本 -> 单据：每条流水的来源单据必须存在，且处于会产生流水的状态
//
// 更正流水不计入单据合计（单据产生的原始流水不变），
// 单独检查它与原流水金额相反、账户和来源单据一致。
type Reconciler struct {
	ledgerRepo  *repository.LedgerRepository
	topupRepo   *repository.TopupRepository
	subsidyRepo *repository.SubsidyRepository
	paymentRepo *repository.PaymentRepository
	refundRepo  *repository.RefundRepository
	jobRepo     *repository.JobRepository
	logger      *zap.Logger
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

func NewReconciler(db *gorm.DB, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		ledgerRepo:  repository.NewLedgerRepository(db),
		topupRepo:   repository.NewTopupRepository(db),
		subsidyRepo: repository.NewSubsidyRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		refundRepo:  repository.NewRefundRepository(db),
		jobRepo:     repository.NewJobRepository(db),
		logger:      logger.Named("reconciler"),
		stopCh:      make(chan struct{}),
		interval:    interval,
		batchSize:   200,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("对账任务启动", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("收到停止信号，任务退出")
			return
		case <-r.stopCh:
			r.logger.Info("任务停止")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("对账失败", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Run 全量对账一次，返回发现的全部不一致
func (r *Reconciler) Run(ctx context.Context) ([]*errs.InvariantViolationError, error) {
	var violations []*errs.InvariantViolationError
	report := func(check, format string, args ...interface{}) {
		v := &errs.InvariantViolationError{Detail: fmt.Sprintf(format, args...)}
		violations = append(violations, v)
		metrics.InvariantViolations.WithLabelValues(check).Inc()
		r.logger.Error("发现账本不一致", zap.String("check", check), zap.Error(v))
	}

	steps := []func(context.Context, func(string, string, ...interface{})) error{
		r.checkTopups,
		r.checkSubsidies,
		r.checkPayments,
		r.checkRefunds,
		r.checkEntries,
	}
	for _, step := range steps {
		if err := step(ctx, report); err != nil {
			return violations, err
		}
	}

	if len(violations) == 0 {
		r.logger.Info("对账完成，未发现不一致")
	}
	return violations, nil
}

func (r *Reconciler) sumEntries(ctx context.Context, recordKind string, recordID int64) (int64, error) {
	entries, err := r.ledgerRepo.ListBySource(ctx, nil, recordKind, recordID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, e := range entries {
		if e.IsCompensation() {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (r *Reconciler) checkTopups(ctx context.Context, report func(string, string, ...interface{})) error {
	var afterID int64
	for {
		topups, err := r.topupRepo.ListByStatusAfterID(ctx, model.TopupStatusCompleted, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("查询充值单失败: %w", err)
		}
		for _, t := range topups {
			sum, err := r.sumEntries(ctx, model.RecordKindTopup, t.ID)
			if err != nil {
				return err
			}
			if sum != t.TotalCredited {
				report(CheckTopupEntries, "充值单 %s 已完成，入账 %d，应为 %d", t.TopupNo, sum, t.TotalCredited)
			}
			afterID = t.ID
		}
		if len(topups) < r.batchSize {
			return nil
		}
	}
}

func (r *Reconciler) checkSubsidies(ctx context.Context, report func(string, string, ...interface{})) error {
	var afterID int64
	for {
		grants, err := r.subsidyRepo.ListGrantedAfterID(ctx, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("查询补贴失败: %w", err)
		}
		for _, g := range grants {
			sum, err := r.sumEntries(ctx, model.RecordKindSubsidyGrant, g.ID)
			if err != nil {
				return err
			}
			if sum != g.Amount {
				report(CheckSubsidyEntries, "补贴 account=%d period=%s 已发放，入账 %d，应为 %d", g.AccountID, g.PeriodID, sum, g.Amount)
			}
			afterID = g.ID
		}
		if len(grants) < r.batchSize {
			return nil
		}
	}
}

func (r *Reconciler) checkPayments(ctx context.Context, report func(string, string, ...interface{})) error {
	var afterID int64
	for {
		payments, err := r.paymentRepo.ListByStatusAfterID(ctx, model.PaymentStatusCompleted, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("查询支付单失败: %w", err)
		}
		for _, p := range payments {
			sum, err := r.sumEntries(ctx, model.RecordKindPayment, p.ID)
			if err != nil {
				return err
			}
			if sum != -p.AmountFromBalance {
				report(CheckPaymentEntries, "支付单 %s 已完成，扣款 %d，应为 %d", p.PaymentNo, -sum, p.AmountFromBalance)
			}
			afterID = p.ID
		}
		if len(payments) < r.batchSize {
			return nil
		}
	}
}

func (r *Reconciler) checkRefunds(ctx context.Context, report func(string, string, ...interface{})) error {
	var afterID int64
	for {
		refunds, err := r.refundRepo.ListAfterID(ctx, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("查询退款记录失败: %w", err)
		}
		for _, rf := range refunds {
			afterID = rf.ID
			job, err := r.jobRepo.GetByID(ctx, nil, rf.JobID)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					report(CheckRefundEntries, "退款 %s 关联的任务 %d 不存在", rf.RefundNo, rf.JobID)
					continue
				}
				return err
			}
			want, err := billing.RefundAmount(job.Pricing.FinalPrice, job.Pricing.TotalUnits, job.Pricing.TotalUnits-rf.UnitsNotDelivered)
			if err != nil {
				report(CheckRefundEntries, "退款 %s 的未交付数量 %d 不合法: %v", rf.RefundNo, rf.UnitsNotDelivered, err)
				continue
			}
			sum, err := r.sumEntries(ctx, model.RecordKindRefund, rf.ID)
			if err != nil {
				return err
			}
			if sum != want {
				report(CheckRefundEntries, "退款 %s 入账 %d，应为 %d", rf.RefundNo, sum, want)
			}
		}
		if len(refunds) < r.batchSize {
			return nil
		}
	}
}

// checkEntries 账本 -> 单据
func (r *Reconciler) checkEntries(ctx context.Context, report func(string, string, ...interface{})) error {
	var afterID int64
	for {
		entries, err := r.ledgerRepo.ListAfterID(ctx, afterID, r.batchSize)
		if err != nil {
			return fmt.Errorf("查询流水失败: %w", err)
		}
		for _, e := range entries {
			afterID = e.ID
			if e.IsCompensation() {
				problem, err := r.compensationProblem(ctx, e)
				if err != nil {
					return err
				}
				if problem != "" {
					report(CheckCompensations, "更正流水 %s (account=%d, amount=%d): %s", e.EntryNo, e.AccountID, e.Amount, problem)
				}
				continue
			}
			problem, err := r.entrySourceProblem(ctx, e)
			if err != nil {
				return err
			}
			if problem != "" {
				report(CheckOrphanEntries, "流水 %s (account=%d, amount=%d): %s", e.EntryNo, e.AccountID, e.Amount, problem)
			}
		}
		if len(entries) < r.batchSize {
			return nil
		}
	}
}

func (r *Reconciler) entrySourceProblem(ctx context.Context, e *model.LedgerEntry) (string, error) {
	missing := func(err error) (string, error) {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Sprintf("来源单据 %s/%d 不存在", e.SourceRecordKind, e.SourceRecordID), nil
		}
		return "", err
	}

	switch e.SourceRecordKind {
	case model.RecordKindTopup:
		t, err := r.topupRepo.GetByID(ctx, nil, e.SourceRecordID)
		if err != nil {
			return missing(err)
		}
		if e.SourceKind != model.SourceKindTopup {
			return "来源类型与充值单不匹配: " + e.SourceKind, nil
		}
		if t.Status != model.TopupStatusCompleted || t.AccountID != e.AccountID {
			return fmt.Sprintf("充值单 %s 状态 %s 不应产生流水", t.TopupNo, t.Status), nil
		}
	case model.RecordKindSubsidyGrant:
		g, err := r.subsidyRepo.GetByID(ctx, nil, e.SourceRecordID)
		if err != nil {
			return missing(err)
		}
		if e.SourceKind != model.SourceKindSubsidy {
			return "来源类型与补贴不匹配: " + e.SourceKind, nil
		}
		if !g.Granted || g.AccountID != e.AccountID {
			return fmt.Sprintf("补贴 period=%s 未发放", g.PeriodID), nil
		}
	case model.RecordKindPayment:
		p, err := r.paymentRepo.GetByID(ctx, nil, e.SourceRecordID)
		if err != nil {
			return missing(err)
		}
		if e.SourceKind != model.SourceKindCharge {
			return "来源类型与支付单不匹配: " + e.SourceKind, nil
		}
		if p.Status != model.PaymentStatusCompleted || p.AccountID != e.AccountID {
			return fmt.Sprintf("支付单 %s 状态 %s 不应产生流水", p.PaymentNo, p.Status), nil
		}
	case model.RecordKindRefund:
		rf, err := r.refundRepo.GetByID(ctx, nil, e.SourceRecordID)
		if err != nil {
			return missing(err)
		}
		if e.SourceKind != model.SourceKindRefund {
			return "来源类型与退款不匹配: " + e.SourceKind, nil
		}
		if rf.AccountID != e.AccountID {
			return fmt.Sprintf("退款 %s 属于其他账户", rf.RefundNo), nil
		}
	default:
		return "未知的来源单据类型 " + e.SourceRecordKind, nil
	}
	return "", nil
}

func (r *Reconciler) compensationProblem(ctx context.Context, e *model.LedgerEntry) (string, error) {
	original, err := r.ledgerRepo.GetByID(ctx, nil, *e.CompensatesID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Sprintf("被更正的流水 %d 不存在", *e.CompensatesID), nil
		}
		return "", err
	}
	switch {
	case original.IsCompensation():
		return fmt.Sprintf("更正的对象 %s 本身是更正流水", original.EntryNo), nil
	case original.AccountID != e.AccountID:
		return fmt.Sprintf("与原流水 %s 账户不一致", original.EntryNo), nil
	case original.Amount != -e.Amount:
		return fmt.Sprintf("与原流水 %s 金额 %d 不相反", original.EntryNo, original.Amount), nil
	case original.SourceKind != e.SourceKind ||
		original.SourceRecordKind != e.SourceRecordKind ||
		original.SourceRecordID != e.SourceRecordID:
		return fmt.Sprintf("与原流水 %s 来源单据不一致", original.EntryNo), nil
	}
	return "", nil
}
