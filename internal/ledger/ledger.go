// Package ledger 钱包账本：只追加的资金流水 + 推导出的余额
//
// 【核心约束】
//  1. 只追加：没有 Update / Delete，更正通过追加反向流水（Compensate）
//  2. 余额 = SUM(amount)，任何地方都不缓存余额
//  3. Append 只在调用方的事务里写入，业务单据与流水要么一起提交要么一起回滚
//  4. 出账后余额不得为负：Append 在同一事务内重新汇总被扣款账户的余额，
//     为负则返回 InsufficientFundsError 让整个事务回滚（账户锁之外的第二道防线）
package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/infrastructure/metrics"
	"printledger/internal/model"
	"printledger/internal/repository"
	"printledger/pkg/idgen"
)

type Ledger struct {
	db   *gorm.DB
	repo *repository.LedgerRepository
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:   db,
		repo: repository.NewLedgerRepository(db),
	}
}

// NewEntry 按金额符号构造一条流水
func NewEntry(accountID, amount int64, sourceKind, recordKind string, recordID int64, description string) *model.LedgerEntry {
	direction := model.DirectionIn
	if amount < 0 {
		direction = model.DirectionOut
	}
	return &model.LedgerEntry{
		EntryNo:          idgen.GenerateEntryNo(),
		AccountID:        accountID,
		Amount:           amount,
		Direction:        direction,
		SourceKind:       sourceKind,
		SourceRecordKind: recordKind,
		SourceRecordID:   recordID,
		Description:      description,
	}
}

// Validate 单条流水的结构校验
func Validate(e *model.LedgerEntry) error {
	if e.AccountID <= 0 {
		return errs.Validation("account_id", "必须大于0, got %d", e.AccountID)
	}
	if e.Amount == 0 {
		return errs.Validation("amount", "流水金额不能为0")
	}
	switch e.Direction {
	case model.DirectionIn:
		if e.Amount < 0 {
			return errs.Validation("direction", "IN 流水金额必须为正, got %d", e.Amount)
		}
	case model.DirectionOut:
		if e.Amount > 0 {
			return errs.Validation("direction", "OUT 流水金额必须为负, got %d", e.Amount)
		}
	default:
		return errs.Validation("direction", "未知方向 %q", e.Direction)
	}
	if !model.IsValidSourceKind(e.SourceKind) {
		return errs.Validation("source_kind", "未知来源类型 %q", e.SourceKind)
	}
	if e.SourceRecordKind == "" || e.SourceRecordID <= 0 {
		return errs.Validation("source_record", "流水必须关联业务单据")
	}
	if e.EntryNo == "" {
		return errs.Validation("entry_no", "流水号不能为空")
	}
	return nil
}

// Append 在 tx 内原子追加一条或多条流水
//
// tx 必须是调用方正在进行的事务；传 nil 时自行开启一个事务
func (l *Ledger) Append(ctx context.Context, tx *gorm.DB, entries ...*model.LedgerEntry) error {
	if len(entries) == 0 {
		return errs.Validation("entries", "至少需要一条流水")
	}
	for _, e := range entries {
		if err := Validate(e); err != nil {
			return err
		}
	}

	if tx == nil {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return l.append(ctx, tx, entries)
		})
	}
	return l.append(ctx, tx, entries)
}

func (l *Ledger) append(ctx context.Context, tx *gorm.DB, entries []*model.LedgerEntry) error {
	if err := l.repo.Create(ctx, tx, entries); err != nil {
		return fmt.Errorf("写入流水失败: %w", err)
	}

	debits := make(map[int64]int64)
	for _, e := range entries {
		if e.Direction == model.DirectionOut {
			debits[e.AccountID] += -e.Amount
		}
	}
	for accountID, debit := range debits {
		balance, err := l.repo.SumByAccount(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("汇总余额失败: %w", err)
		}
		if balance < 0 {
			return &errs.InsufficientFundsError{
				AccountID: accountID,
				Balance:   balance + debit,
				Required:  debit,
			}
		}
	}

	// 指标在事务提交前记录，回滚时会略有高估，可以接受
	for _, e := range entries {
		metrics.LedgerEntriesAppended.WithLabelValues(e.SourceKind).Inc()
		amount := e.Amount
		if amount < 0 {
			amount = -amount
		}
		metrics.LedgerAmount.WithLabelValues(e.Direction).Add(float64(amount))
	}
	return nil
}

// Compensate 追加一条与 original 金额相反的更正流水，原流水保持不变
//
// 更正流水沿用原流水的来源单据，CompensatesID 指向原流水；
// compensates_id 唯一索引保证同一条流水只能被更正一次。
// 更正一笔入账即是出账，余额不足时由 Append 返回 InsufficientFundsError。
func (l *Ledger) Compensate(ctx context.Context, tx *gorm.DB, original *model.LedgerEntry, reason string) (*model.LedgerEntry, error) {
	if original == nil || original.ID == 0 {
		return nil, errs.Validation("original", "被更正的流水必须已提交")
	}
	if original.IsCompensation() {
		return nil, errs.Validation("original", "更正流水 %s 不能再被更正", original.EntryNo)
	}
	if reason == "" {
		return nil, errs.Validation("reason", "更正原因不能为空")
	}
	entry := NewEntry(
		original.AccountID,
		-original.Amount,
		original.SourceKind,
		original.SourceRecordKind,
		original.SourceRecordID,
		fmt.Sprintf("更正 %s: %s", original.EntryNo, reason),
	)
	entry.CompensatesID = &original.ID
	if err := l.Append(ctx, tx, entry); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, &errs.DuplicateOperationError{Operation: "compensate_entry", Key: original.EntryNo}
		}
		return nil, err
	}
	return entry, nil
}

// Balance 当前余额，tx 为 nil 时在默认连接上读取
func (l *Ledger) Balance(ctx context.Context, tx *gorm.DB, accountID int64) (int64, error) {
	return l.repo.SumByAccount(ctx, tx, accountID)
}

// History 按 created_at 倒序分页
func (l *Ledger) History(ctx context.Context, accountID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	if pageSize <= 0 {
		return nil, 0, errs.Validation("page_size", "必须大于0, got %d", pageSize)
	}
	return l.repo.ListByAccount(ctx, accountID, page, pageSize)
}

// Entry 按流水号查询
func (l *Ledger) Entry(ctx context.Context, tx *gorm.DB, entryNo string) (*model.LedgerEntry, error) {
	return l.repo.GetByEntryNo(ctx, tx, entryNo)
}

// EntriesFor 某张业务单据产生的流水（含更正流水）
func (l *Ledger) EntriesFor(ctx context.Context, tx *gorm.DB, recordKind string, recordID int64) ([]*model.LedgerEntry, error) {
	return l.repo.ListBySource(ctx, tx, recordKind, recordID)
}
