package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
	"printledger/pkg/idgen"
)

type TopupService struct {
	db          *gorm.DB
	logger      *zap.Logger
	ledger      *ledger.Ledger
	events      *eventWriter
	topupRepo   *repository.TopupRepository
	accountRepo *repository.AccountRepository
	catalogRepo *repository.CatalogRepository
}

func NewTopupService(db *gorm.DB, topic string, logger *zap.Logger) *TopupService {
	return &TopupService{
		db:          db,
		logger:      logger.Named("topup"),
		ledger:      ledger.New(db),
		events:      newEventWriter(db, topic),
		topupRepo:   repository.NewTopupRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		catalogRepo: repository.NewCatalogRepository(db),
	}
}

type CreateTopupRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
	Amount    int64 `json:"amount" binding:"required,gt=0"`
}

// CreateTopup 创建待支付的充值单，赠送金额按当前有效档位在创建时确定
func (s *TopupService) CreateTopup(ctx context.Context, req CreateTopupRequest) (*model.Topup, error) {
	if req.Amount <= 0 {
		return nil, errs.Validation("amount", "充值金额必须大于0, got %d", req.Amount)
	}
	if _, err := s.accountRepo.GetByID(ctx, nil, req.AccountID); err != nil {
		return nil, err
	}

	topup := &model.Topup{
		TopupNo:         idgen.GenerateTopupNo(),
		AccountID:       req.AccountID,
		DepositedAmount: req.Amount,
		Status:          model.TopupStatusPending,
	}

	tier, err := s.catalogRepo.ApplicableTopupBonusTier(ctx, nil, req.Amount)
	if err != nil {
		return nil, err
	}
	if tier != nil {
		// 赠送金额向下取整
		topup.BonusAmount = decimal.NewFromInt(req.Amount).Mul(tier.BonusPercent).Floor().IntPart()
		id := tier.ID
		topup.BonusTierID = &id
	}
	topup.TotalCredited = topup.DepositedAmount + topup.BonusAmount

	if err := s.topupRepo.Create(ctx, nil, topup); err != nil {
		return nil, fmt.Errorf("创建充值单失败: %w", err)
	}

	s.logger.Info("充值单已创建",
		zap.String("topup_no", topup.TopupNo),
		zap.Int64("account_id", topup.AccountID),
		zap.Int64("deposited", topup.DepositedAmount),
		zap.Int64("bonus", topup.BonusAmount))
	return topup, nil
}

// CompleteTopup 充值到账：PENDING -> COMPLETED，入账本金（+赠送）
//
// 【幂等】已经 COMPLETED 的充值单直接返回，不会重复入账
func (s *TopupService) CompleteTopup(ctx context.Context, topupID int64) (topup *model.Topup, err error) {
	defer func() { observe("complete_topup", err) }()

	alreadyDone := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		topup, err = s.topupRepo.GetByIDForUpdate(ctx, tx, topupID)
		if err != nil {
			return err
		}
		if topup.Status == model.TopupStatusCompleted {
			alreadyDone = true
			return nil
		}

		if err := s.topupRepo.UpdateStatus(ctx, tx, topup.ID, model.TopupStatusPending, model.TopupStatusCompleted); err != nil {
			return fmt.Errorf("充值单 %s 当前状态 %s: %w", topup.TopupNo, topup.Status, err)
		}

		entries := []*model.LedgerEntry{
			ledger.NewEntry(topup.AccountID, topup.DepositedAmount,
				model.SourceKindTopup, model.RecordKindTopup, topup.ID,
				fmt.Sprintf("充值-%s", topup.TopupNo)),
		}
		if topup.BonusAmount > 0 {
			entries = append(entries, ledger.NewEntry(topup.AccountID, topup.BonusAmount,
				model.SourceKindTopup, model.RecordKindTopup, topup.ID,
				fmt.Sprintf("充值赠送-%s", topup.TopupNo)))
		}
		if err := s.ledger.Append(ctx, tx, entries...); err != nil {
			return err
		}

		return s.events.write(ctx, tx, LedgerEvent{
			Event:      EventTopupCompleted,
			AccountID:  topup.AccountID,
			RecordKind: model.RecordKindTopup,
			RecordID:   topup.ID,
			RecordNo:   topup.TopupNo,
			Amount:     topup.TotalCredited,
		}, entries...)
	})
	if err != nil {
		return nil, err
	}
	if alreadyDone {
		s.logger.Info("充值单已完成，忽略重复回调", zap.String("topup_no", topup.TopupNo))
		return topup, nil
	}

	now := time.Now()
	topup.Status = model.TopupStatusCompleted
	topup.CompletedAt = &now
	s.logger.Info("充值到账",
		zap.String("topup_no", topup.TopupNo),
		zap.Int64("account_id", topup.AccountID),
		zap.Int64("credited", topup.TotalCredited))
	return topup, nil
}

// FailTopup 外部渠道扣款失败：PENDING -> FAILED，不产生流水
func (s *TopupService) FailTopup(ctx context.Context, topupID int64) (topup *model.Topup, err error) {
	defer func() { observe("fail_topup", err) }()

	topup, err = s.topupRepo.GetByID(ctx, nil, topupID)
	if err != nil {
		return nil, err
	}
	if topup.Status == model.TopupStatusFailed {
		return topup, nil
	}
	if err := s.topupRepo.UpdateStatus(ctx, nil, topup.ID, model.TopupStatusPending, model.TopupStatusFailed); err != nil {
		if errors.Is(err, errs.ErrInvalidTransition) {
			return nil, fmt.Errorf("充值单 %s 当前状态 %s: %w", topup.TopupNo, topup.Status, err)
		}
		return nil, err
	}

	topup.Status = model.TopupStatusFailed
	s.logger.Info("充值失败", zap.String("topup_no", topup.TopupNo))
	return topup, nil
}
