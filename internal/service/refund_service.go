package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/billing"
	"printledger/internal/errs"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
	"printledger/pkg/idgen"
)

type RefundService struct {
	db          *gorm.DB
	locker      lock.Locker
	logger      *zap.Logger
	ledger      *ledger.Ledger
	events      *eventWriter
	jobRepo     *repository.JobRepository
	paymentRepo *repository.PaymentRepository
	refundRepo  *repository.RefundRepository
}

func NewRefundService(db *gorm.DB, locker lock.Locker, topic string, logger *zap.Logger) *RefundService {
	return &RefundService{
		db:          db,
		locker:      locker,
		logger:      logger.Named("refund"),
		ledger:      ledger.New(db),
		events:      newEventWriter(db, topic),
		jobRepo:     repository.NewJobRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		refundRepo:  repository.NewRefundRepository(db),
	}
}

type RefundRequest struct {
	JobID          int64  `json:"job_id" binding:"required"`
	UnitsDelivered int64  `json:"units_delivered" binding:"gte=0"`
	Reason         string `json:"reason"`
}

type RefundResponse struct {
	RefundNo          string `json:"refund_no"`
	JobNo             string `json:"job_no"`
	UnitsNotDelivered int64  `json:"units_not_delivered"`
	Amount            int64  `json:"amount"`
	EntryNo           string `json:"entry_no,omitempty"`
}

func duplicateRefund(jobNo string) error {
	return &errs.DuplicateOperationError{Operation: "refund_job", Key: "job=" + jobNo}
}

// RefundJob 取消已支付、未完成的打印任务，按未交付比例退回钱包
//
// 【并发控制】
//   - 任务维度的退款锁：同一任务的并发退款请求串行
//   - 账户锁：与同账户的扣款互斥
//   - refund.job_id 唯一索引：最后一道防线
//
// 锁顺序固定为 任务锁 -> 账户锁
func (s *RefundService) RefundJob(ctx context.Context, req RefundRequest) (resp *RefundResponse, err error) {
	defer func() { observe("refund_job", err) }()

	job, err := s.jobRepo.GetByID(ctx, nil, req.JobID)
	if err != nil {
		return nil, err
	}
	if _, err := s.refundRepo.GetByJobID(ctx, nil, job.ID); err == nil {
		return nil, duplicateRefund(job.JobNo)
	}

	err = withLock(ctx, s.locker, s.logger, lock.JobRefundKey(job.ID), func() error {
		return withLock(ctx, s.locker, s.logger, lock.AccountKey(job.AccountID), func() error {
			var err error
			resp, err = s.refund(ctx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("任务已取消并退款",
		zap.String("refund_no", resp.RefundNo),
		zap.String("job_no", resp.JobNo),
		zap.Int64("units_not_delivered", resp.UnitsNotDelivered),
		zap.Int64("amount", resp.Amount))
	return resp, nil
}

func (s *RefundService) refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	var resp *RefundResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := s.jobRepo.GetByIDForUpdate(ctx, tx, req.JobID)
		if err != nil {
			return err
		}

		_, err = s.refundRepo.GetByJobID(ctx, tx, job.ID)
		if err == nil {
			return duplicateRefund(job.JobNo)
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if !billing.CanRefund(job.Status) {
			return fmt.Errorf("任务 %s 当前状态 %s 不能退款: %w", job.JobNo, job.Status, errs.ErrInvalidTransition)
		}
		payment, err := s.paymentRepo.GetByJobID(ctx, tx, job.ID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("任务 %s 尚未支付: %w", job.JobNo, errs.ErrInvalidTransition)
			}
			return err
		}
		if payment.Status != model.PaymentStatusCompleted {
			return fmt.Errorf("任务 %s 的支付单状态为 %s: %w", job.JobNo, payment.Status, errs.ErrInvalidTransition)
		}

		amount, err := billing.RefundAmount(job.Pricing.FinalPrice, job.Pricing.TotalUnits, req.UnitsDelivered)
		if err != nil {
			return err
		}

		if err := s.jobRepo.UpdateStatus(ctx, tx, job.ID, job.Status, model.JobStatusCanceled); err != nil {
			return fmt.Errorf("任务状态更新失败: %w", err)
		}

		refund := &model.Refund{
			RefundNo:          idgen.GenerateRefundNo(),
			JobID:             job.ID,
			AccountID:         job.AccountID,
			UnitsNotDelivered: job.Pricing.TotalUnits - req.UnitsDelivered,
			Reason:            req.Reason,
		}
		if err := s.refundRepo.Create(ctx, tx, refund); err != nil {
			if repository.IsDuplicateKey(err) {
				return duplicateRefund(job.JobNo)
			}
			return fmt.Errorf("创建退款记录失败: %w", err)
		}

		resp = &RefundResponse{
			RefundNo:          refund.RefundNo,
			JobNo:             job.JobNo,
			UnitsNotDelivered: refund.UnitsNotDelivered,
			Amount:            amount,
		}

		// 全部已打印时退款为0，只留退款记录不写流水
		var entries []*model.LedgerEntry
		if amount > 0 {
			entry := ledger.NewEntry(job.AccountID, amount,
				model.SourceKindRefund, model.RecordKindRefund, refund.ID,
				fmt.Sprintf("取消退款-%s-%s", refund.RefundNo, req.Reason))
			if err := s.ledger.Append(ctx, tx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			resp.EntryNo = entry.EntryNo
		}

		return s.events.write(ctx, tx, LedgerEvent{
			Event:      EventJobRefunded,
			AccountID:  job.AccountID,
			RecordKind: model.RecordKindRefund,
			RecordID:   refund.ID,
			RecordNo:   refund.RefundNo,
			Amount:     amount,
		}, entries...)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
