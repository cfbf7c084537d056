package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/billing"
	"printledger/internal/config"
	"printledger/internal/errs"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
	"printledger/pkg/idgen"
)

type PaymentService struct {
	db          *gorm.DB
	locker      lock.Locker
	cfg         *config.Config
	logger      *zap.Logger
	ledger      *ledger.Ledger
	events      *eventWriter
	paymentRepo *repository.PaymentRepository
	jobRepo     *repository.JobRepository
	accountRepo *repository.AccountRepository
}

func NewPaymentService(db *gorm.DB, locker lock.Locker, cfg *config.Config, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:          db,
		locker:      locker,
		cfg:         cfg,
		logger:      logger.Named("payment"),
		ledger:      ledger.New(db),
		events:      newEventWriter(db, cfg.Kafka.Topic.LedgerEvents),
		paymentRepo: repository.NewPaymentRepository(db),
		jobRepo:     repository.NewJobRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

// Allocate 按当前余额拆分价格（只计算，不落库）
func (s *PaymentService) Allocate(ctx context.Context, accountID, price int64) (billing.Allocation, error) {
	if _, err := s.accountRepo.GetByID(ctx, nil, accountID); err != nil {
		return billing.Allocation{}, err
	}
	balance, err := s.ledger.Balance(ctx, nil, accountID)
	if err != nil {
		return billing.Allocation{}, err
	}
	return billing.Allocate(price, balance)
}

// CreatePayment 为待支付的打印任务创建支付单
//
// 同一任务已有 PENDING 支付单时直接返回它；已完成/失败/超时的任务不能再次创建
func (s *PaymentService) CreatePayment(ctx context.Context, jobID int64) (*model.Payment, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}

	existing, err := s.paymentRepo.GetByJobID(ctx, nil, jobID)
	switch {
	case err == nil:
		if existing.Status == model.PaymentStatusPending {
			return existing, nil
		}
		return nil, &errs.DuplicateOperationError{
			Operation: "create_payment",
			Key:       fmt.Sprintf("job=%s,payment=%s,status=%s", job.JobNo, existing.PaymentNo, existing.Status),
		}
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	if job.Status != model.JobStatusPendingPayment {
		return nil, fmt.Errorf("任务 %s 当前状态 %s 不能支付: %w", job.JobNo, job.Status, errs.ErrInvalidTransition)
	}

	alloc, err := s.Allocate(ctx, job.AccountID, job.Pricing.FinalPrice)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		PaymentNo:         idgen.GeneratePaymentNo(),
		JobID:             job.ID,
		AccountID:         job.AccountID,
		AmountFromBalance: alloc.FromBalance,
		AmountDirect:      alloc.Direct,
		Total:             job.Pricing.FinalPrice,
		Method:            alloc.Method,
		Status:            model.PaymentStatusPending,
		ExpiresAt:         time.Now().Add(s.cfg.Business.PaymentExpiry()),
	}
	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		if repository.IsDuplicateKey(err) {
			// 并发创建，返回先写入的那一张
			return s.paymentRepo.GetByJobID(ctx, nil, jobID)
		}
		return nil, fmt.Errorf("创建支付单失败: %w", err)
	}

	s.logger.Info("支付单已创建",
		zap.String("payment_no", payment.PaymentNo),
		zap.String("job_no", job.JobNo),
		zap.String("method", payment.Method),
		zap.Int64("from_balance", payment.AmountFromBalance),
		zap.Int64("direct", payment.AmountDirect))
	return payment, nil
}

// CompletePayment 支付完成（外部渠道回调或纯余额支付）
//
// 【流程】
//  1. 拿账户锁
//  2. 事务内：支付单 PENDING -> COMPLETED，余额部分写 OUT/CHARGE 流水，任务 -> QUEUED
//  3. 余额不足时整个事务回滚，支付单保持 PENDING
//
// 【幂等】已 COMPLETED 的支付单直接返回，不会二次扣款
func (s *PaymentService) CompletePayment(ctx context.Context, paymentID int64) (payment *model.Payment, err error) {
	defer func() { observe("complete_payment", err) }()

	payment, err = s.paymentRepo.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.PaymentStatusCompleted {
		return payment, nil
	}

	alreadyDone := false
	err = withLock(ctx, s.locker, s.logger, lock.AccountKey(payment.AccountID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			payment, err = s.paymentRepo.GetByIDForUpdate(ctx, tx, paymentID)
			if err != nil {
				return err
			}
			// 锁内再检查一次
			if payment.Status == model.PaymentStatusCompleted {
				alreadyDone = true
				return nil
			}
			if payment.Status != model.PaymentStatusPending {
				return fmt.Errorf("支付单 %s 当前状态 %s: %w", payment.PaymentNo, payment.Status, errs.ErrInvalidTransition)
			}

			if payment.AmountFromBalance > 0 {
				balance, err := s.ledger.Balance(ctx, tx, payment.AccountID)
				if err != nil {
					return err
				}
				if balance < payment.AmountFromBalance {
					return &errs.InsufficientFundsError{
						AccountID: payment.AccountID,
						Balance:   balance,
						Required:  payment.AmountFromBalance,
					}
				}
			}

			if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, model.PaymentStatusPending, model.PaymentStatusCompleted); err != nil {
				return err
			}

			var entries []*model.LedgerEntry
			if payment.AmountFromBalance > 0 {
				entries = append(entries, ledger.NewEntry(payment.AccountID, -payment.AmountFromBalance,
					model.SourceKindCharge, model.RecordKindPayment, payment.ID,
					fmt.Sprintf("打印扣款-%s", payment.PaymentNo)))
				if err := s.ledger.Append(ctx, tx, entries...); err != nil {
					return err
				}
			}

			if err := s.jobRepo.UpdateStatus(ctx, tx, payment.JobID, model.JobStatusPendingPayment, model.JobStatusQueued); err != nil {
				return fmt.Errorf("任务状态更新失败: %w", err)
			}

			return s.events.write(ctx, tx, LedgerEvent{
				Event:      EventPaymentCompleted,
				AccountID:  payment.AccountID,
				RecordKind: model.RecordKindPayment,
				RecordID:   payment.ID,
				RecordNo:   payment.PaymentNo,
				Amount:     -payment.AmountFromBalance,
			}, entries...)
		})
	})
	if err != nil {
		if errs.IsInsufficientFunds(err) {
			s.logger.Warn("余额不足，支付未完成", zap.Int64("payment_id", paymentID), zap.Error(err))
		}
		return nil, err
	}
	if alreadyDone {
		return payment, nil
	}

	now := time.Now()
	payment.Status = model.PaymentStatusCompleted
	payment.CompletedAt = &now
	s.logger.Info("支付完成",
		zap.String("payment_no", payment.PaymentNo),
		zap.Int64("account_id", payment.AccountID),
		zap.Int64("from_balance", payment.AmountFromBalance),
		zap.Int64("direct", payment.AmountDirect))
	return payment, nil
}

// FailPayment 外部渠道支付失败：支付单 -> FAILED，任务 -> CANCELED，不产生流水
func (s *PaymentService) FailPayment(ctx context.Context, paymentID int64) (payment *model.Payment, err error) {
	defer func() { observe("fail_payment", err) }()

	payment, err = s.paymentRepo.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == model.PaymentStatusFailed {
		return payment, nil
	}

	if err := s.closePayment(ctx, payment, model.PaymentStatusFailed, EventPaymentFailed); err != nil {
		return nil, err
	}
	s.logger.Info("支付失败", zap.String("payment_no", payment.PaymentNo))
	return payment, nil
}

// ExpirePayments 关闭超时未完成的支付单，返回处理条数
//
// 超时只改状态，不动账本：PENDING 期间从未扣款，也就无需退回
func (s *PaymentService) ExpirePayments(ctx context.Context, limit int) (int, error) {
	payments, err := s.paymentRepo.GetExpiredPayments(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("查询超时支付单失败: %w", err)
	}

	expired := 0
	for _, payment := range payments {
		err := s.closePayment(ctx, payment, model.PaymentStatusExpired, EventPaymentExpired)
		observe("expire_payment", err)
		if err != nil {
			if errors.Is(err, errs.ErrInvalidTransition) {
				// 已被回调并发完成
				s.logger.Info("支付单状态已变化，跳过", zap.String("payment_no", payment.PaymentNo))
				continue
			}
			s.logger.Error("关闭超时支付单失败", zap.String("payment_no", payment.PaymentNo), zap.Error(err))
			continue
		}
		expired++
		s.logger.Info("支付单超时关闭", zap.String("payment_no", payment.PaymentNo))
	}
	return expired, nil
}

func (s *PaymentService) closePayment(ctx context.Context, payment *model.Payment, to, event string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, model.PaymentStatusPending, to); err != nil {
			return fmt.Errorf("支付单 %s 当前状态 %s: %w", payment.PaymentNo, payment.Status, err)
		}
		if err := s.jobRepo.UpdateStatus(ctx, tx, payment.JobID, model.JobStatusPendingPayment, model.JobStatusCanceled); err != nil {
			return fmt.Errorf("任务状态更新失败: %w", err)
		}
		return s.events.write(ctx, tx, LedgerEvent{
			Event:      event,
			AccountID:  payment.AccountID,
			RecordKind: model.RecordKindPayment,
			RecordID:   payment.ID,
			RecordNo:   payment.PaymentNo,
		})
	})
	if err != nil {
		return err
	}
	payment.Status = to
	return nil
}

// ListPayments 账户的支付单，按创建时间倒序
func (s *PaymentService) ListPayments(ctx context.Context, accountID int64, page int) ([]*model.Payment, int64, error) {
	if page <= 0 {
		return nil, 0, errs.Validation("page", "必须大于0, got %d", page)
	}
	return s.paymentRepo.ListByAccount(ctx, accountID, page, s.cfg.Business.HistoryPageSize)
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID int64) (*model.Payment, error) {
	return s.paymentRepo.GetByID(ctx, nil, paymentID)
}
