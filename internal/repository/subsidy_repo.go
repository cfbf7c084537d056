package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"printledger/internal/errs"
	"printledger/internal/model"
)

type SubsidyRepository struct {
	db *gorm.DB
}

func NewSubsidyRepository(db *gorm.DB) *SubsidyRepository {
	return &SubsidyRepository{db: db}
}

func (r *SubsidyRepository) Create(ctx context.Context, tx *gorm.DB, grant *model.SubsidyGrant) error {
	return pick(r.db, tx).WithContext(ctx).Create(grant).Error
}

func (r *SubsidyRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.SubsidyGrant, error) {
	var grant model.SubsidyGrant
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&grant).Error
	if err != nil {
		return nil, notFound(err, "subsidy grant", id)
	}
	return &grant, nil
}

// GetForUpdate 按 (account, period) 加行锁查询
func (r *SubsidyRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, accountID int64, periodID string) (*model.SubsidyGrant, error) {
	var grant model.SubsidyGrant
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ? AND period_id = ?", accountID, periodID).
		First(&grant).Error
	if err != nil {
		return nil, notFound(err, "subsidy grant", fmt.Sprintf("%d/%s", accountID, periodID))
	}
	return &grant, nil
}

// MarkGranted granted: false -> true，只生效一次
func (r *SubsidyRepository) MarkGranted(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.SubsidyGrant{}).
		Where("id = ? AND granted = ?", id, false).
		Updates(map[string]interface{}{
			"granted":    true,
			"granted_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrInvalidTransition
	}
	return nil
}

func (r *SubsidyRepository) ListGrantedAfterID(ctx context.Context, afterID int64, limit int) ([]*model.SubsidyGrant, error) {
	var grants []*model.SubsidyGrant
	err := r.db.WithContext(ctx).
		Where("granted = ? AND id > ?", true, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&grants).Error
	return grants, err
}
