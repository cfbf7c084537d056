package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
)

// CorrectionService 人工更正流水
//
// 原流水不动，追加一条金额相反的更正流水；更正入账等同于出账，
// 所以和扣款一样在账户锁内完成
type CorrectionService struct {
	db         *gorm.DB
	locker     lock.Locker
	logger     *zap.Logger
	ledger     *ledger.Ledger
	events     *eventWriter
	ledgerRepo *repository.LedgerRepository
}

func NewCorrectionService(db *gorm.DB, locker lock.Locker, topic string, logger *zap.Logger) *CorrectionService {
	return &CorrectionService{
		db:         db,
		locker:     locker,
		logger:     logger.Named("correction"),
		ledger:     ledger.New(db),
		events:     newEventWriter(db, topic),
		ledgerRepo: repository.NewLedgerRepository(db),
	}
}

type CorrectEntryRequest struct {
	EntryNo string `json:"entry_no" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
}

func duplicateCorrection(entryNo string) error {
	return &errs.DuplicateOperationError{Operation: "compensate_entry", Key: entryNo}
}

// CorrectEntry 更正一条流水，返回新追加的更正流水
func (s *CorrectionService) CorrectEntry(ctx context.Context, req CorrectEntryRequest) (entry *model.LedgerEntry, err error) {
	defer func() { observe("correct_entry", err) }()

	if req.EntryNo == "" {
		return nil, errs.Validation("entry_no", "不能为空")
	}
	if req.Reason == "" {
		return nil, errs.Validation("reason", "不能为空")
	}

	original, err := s.ledger.Entry(ctx, nil, req.EntryNo)
	if err != nil {
		return nil, err
	}

	err = withLock(ctx, s.locker, s.logger, lock.AccountKey(original.AccountID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := s.ledgerRepo.GetCompensation(ctx, tx, original.ID)
			if err == nil {
				return duplicateCorrection(original.EntryNo)
			}
			if !errors.Is(err, errs.ErrNotFound) {
				return err
			}

			entry, err = s.ledger.Compensate(ctx, tx, original, req.Reason)
			if err != nil {
				return err
			}

			return s.events.write(ctx, tx, LedgerEvent{
				Event:      EventEntryCompensated,
				AccountID:  entry.AccountID,
				RecordKind: entry.SourceRecordKind,
				RecordID:   entry.SourceRecordID,
				RecordNo:   original.EntryNo,
				Amount:     entry.Amount,
			}, entry)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("流水已更正",
		zap.String("original", original.EntryNo),
		zap.String("entry_no", entry.EntryNo),
		zap.Int64("account_id", entry.AccountID),
		zap.Int64("amount", entry.Amount),
		zap.String("reason", req.Reason))
	return entry, nil
}
