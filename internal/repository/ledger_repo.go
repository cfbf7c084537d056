package repository

import (
	"context"

	"gorm.io/gorm"

	"printledger/internal/model"
)

// LedgerRepository 账本流水
//
// 【注意】这里故意只有 Create 和查询方法，没有 Update / Delete
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create 批量插入，调用方负责放在同一事务中
func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entries []*model.LedgerEntry) error {
	return pick(r.db, tx).WithContext(ctx).Create(&entries).Error
}

// SumByAccount 余额 = SUM(amount)
func (r *LedgerRepository) SumByAccount(ctx context.Context, tx *gorm.DB, accountID int64) (int64, error) {
	var sum int64
	err := pick(r.db, tx).WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *LedgerRepository) GetByEntryNo(ctx context.Context, tx *gorm.DB, entryNo string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := pick(r.db, tx).WithContext(ctx).Where("entry_no = ?", entryNo).First(&entry).Error
	if err != nil {
		return nil, notFound(err, "ledger entry", entryNo)
	}
	return &entry, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, notFound(err, "ledger entry", id)
	}
	return &entry, nil
}

// GetCompensation 原流水对应的更正流水，没有时返回 ErrNotFound
func (r *LedgerRepository) GetCompensation(ctx context.Context, tx *gorm.DB, originalID int64) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := pick(r.db, tx).WithContext(ctx).Where("compensates_id = ?", originalID).First(&entry).Error
	if err != nil {
		return nil, notFound(err, "compensation of ledger entry", originalID)
	}
	return &entry, nil
}

// ListBySource 某张业务单据产生的全部流水
func (r *LedgerRepository) ListBySource(ctx context.Context, tx *gorm.DB, recordKind string, recordID int64) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := pick(r.db, tx).WithContext(ctx).
		Where("source_record_kind = ? AND source_record_id = ?", recordKind, recordID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// ListByAccount 按时间倒序分页
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.LedgerEntry, int64, error) {
	var entries []*model.LedgerEntry
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("account_id = ?", accountID).
		Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset(page, pageSize)).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

// ListAfterID 对账任务按主键游标扫描
func (r *LedgerRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
