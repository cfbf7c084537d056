package service

import (
	"context"

	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/ledger"
	"printledger/internal/model"
	"printledger/internal/repository"
)

// BalanceService 账户与余额查询
// 账户表不存余额，余额永远是流水求和
type BalanceService struct {
	accountRepo *repository.AccountRepository
	ledger      *ledger.Ledger
	pageSize    int
}

func NewBalanceService(db *gorm.DB, pageSize int) *BalanceService {
	return &BalanceService{
		accountRepo: repository.NewAccountRepository(db),
		ledger:      ledger.New(db),
		pageSize:    pageSize,
	}
}

// HistoryPage 一页流水
type HistoryPage struct {
	Entries  []*model.LedgerEntry `json:"entries"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

func (s *BalanceService) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, nil, accountID); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, nil, accountID)
}

// GetHistory page 从 1 开始
func (s *BalanceService) GetHistory(ctx context.Context, accountID int64, page int) (*HistoryPage, error) {
	if page <= 0 {
		return nil, errs.Validation("page", "必须大于0, got %d", page)
	}
	if _, err := s.accountRepo.GetByID(ctx, nil, accountID); err != nil {
		return nil, err
	}
	entries, total, err := s.ledger.History(ctx, accountID, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: s.pageSize,
	}, nil
}

func (s *BalanceService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.accountRepo.GetByID(ctx, nil, accountID)
}

// GetOrCreateAccount userRef 为外部用户标识（学号等）
func (s *BalanceService) GetOrCreateAccount(ctx context.Context, userRef string) (*model.Account, error) {
	if userRef == "" {
		return nil, errs.Validation("user_ref", "不能为空")
	}
	return s.accountRepo.GetOrCreate(ctx, userRef)
}
