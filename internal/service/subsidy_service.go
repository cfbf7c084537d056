package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
)

// SubsidyService 学期补贴
// 每个账户每个学期最多发放一次，由 (account_id, period_id) 唯一索引兜底
type SubsidyService struct {
	db          *gorm.DB
	logger      *zap.Logger
	ledger      *ledger.Ledger
	events      *eventWriter
	subsidyRepo *repository.SubsidyRepository
	accountRepo *repository.AccountRepository
}

func NewSubsidyService(db *gorm.DB, topic string, logger *zap.Logger) *SubsidyService {
	return &SubsidyService{
		db:          db,
		logger:      logger.Named("subsidy"),
		ledger:      ledger.New(db),
		events:      newEventWriter(db, topic),
		subsidyRepo: repository.NewSubsidyRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

type GrantSubsidyRequest struct {
	AccountID int64  `json:"account_id" binding:"required"`
	PeriodID  string `json:"period_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"gte=0"`
}

func validateSubsidy(req GrantSubsidyRequest) error {
	if req.PeriodID == "" {
		return errs.Validation("period_id", "不能为空")
	}
	if req.Amount < 0 {
		return errs.Validation("amount", "补贴金额不能为负, got %d", req.Amount)
	}
	return nil
}

func duplicateGrant(req GrantSubsidyRequest) error {
	return &errs.DuplicateOperationError{
		Operation: "grant_subsidy",
		Key:       fmt.Sprintf("account=%d,period=%s", req.AccountID, req.PeriodID),
	}
}

// ScheduleSubsidy 预排补贴（granted=false），GrantSubsidy 时才入账
func (s *SubsidyService) ScheduleSubsidy(ctx context.Context, req GrantSubsidyRequest) (*model.SubsidyGrant, error) {
	if err := validateSubsidy(req); err != nil {
		return nil, err
	}
	if _, err := s.accountRepo.GetByID(ctx, nil, req.AccountID); err != nil {
		return nil, err
	}

	grant := &model.SubsidyGrant{
		AccountID: req.AccountID,
		PeriodID:  req.PeriodID,
		Amount:    req.Amount,
	}
	if err := s.subsidyRepo.Create(ctx, nil, grant); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, duplicateGrant(req)
		}
		return nil, err
	}
	return grant, nil
}

// GrantSubsidy 发放补贴
//
// 已预排的记录 granted: false -> true；没有预排则直接创建已发放的记录。
// 同一学期第二次发放返回 DuplicateOperationError，余额不变。
// 金额为 0 时只记录发放，不产生流水。
func (s *SubsidyService) GrantSubsidy(ctx context.Context, req GrantSubsidyRequest) (grant *model.SubsidyGrant, err error) {
	defer func() { observe("grant_subsidy", err) }()

	if err := validateSubsidy(req); err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.accountRepo.GetByID(ctx, tx, req.AccountID); err != nil {
			return err
		}

		existing, err := s.subsidyRepo.GetForUpdate(ctx, tx, req.AccountID, req.PeriodID)
		switch {
		case err == nil:
			if existing.Granted {
				return duplicateGrant(req)
			}
			if existing.Amount != req.Amount {
				return errs.Validation("amount", "与预排金额不一致: scheduled=%d, got %d", existing.Amount, req.Amount)
			}
			if err := s.subsidyRepo.MarkGranted(ctx, tx, existing.ID, now); err != nil {
				if errors.Is(err, errs.ErrInvalidTransition) {
					return duplicateGrant(req)
				}
				return err
			}
			existing.Granted = true
			existing.GrantedAt = &now
			grant = existing
		case errors.Is(err, errs.ErrNotFound):
			grant = &model.SubsidyGrant{
				AccountID: req.AccountID,
				PeriodID:  req.PeriodID,
				Amount:    req.Amount,
				Granted:   true,
				GrantedAt: &now,
			}
			if err := s.subsidyRepo.Create(ctx, tx, grant); err != nil {
				if repository.IsDuplicateKey(err) {
					return duplicateGrant(req)
				}
				return err
			}
		default:
			return err
		}

		var entries []*model.LedgerEntry
		if grant.Amount > 0 {
			entries = append(entries, ledger.NewEntry(grant.AccountID, grant.Amount,
				model.SourceKindSubsidy, model.RecordKindSubsidyGrant, grant.ID,
				fmt.Sprintf("学期补贴-%s", grant.PeriodID)))
			if err := s.ledger.Append(ctx, tx, entries...); err != nil {
				return err
			}
		}

		return s.events.write(ctx, tx, LedgerEvent{
			Event:      EventSubsidyGranted,
			AccountID:  grant.AccountID,
			RecordKind: model.RecordKindSubsidyGrant,
			RecordID:   grant.ID,
			RecordNo:   grant.PeriodID,
			Amount:     grant.Amount,
		}, entries...)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("补贴已发放",
		zap.Int64("account_id", grant.AccountID),
		zap.String("period_id", grant.PeriodID),
		zap.Int64("amount", grant.Amount))
	return grant, nil
}
