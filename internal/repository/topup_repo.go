package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"printledger/internal/errs"
	"printledger/internal/model"
)

type TopupRepository struct {
	db *gorm.DB
}

func NewTopupRepository(db *gorm.DB) *TopupRepository {
	return &TopupRepository{db: db}
}

func (r *TopupRepository) Create(ctx context.Context, tx *gorm.DB, topup *model.Topup) error {
	return pick(r.db, tx).WithContext(ctx).Create(topup).Error
}

func (r *TopupRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Topup, error) {
	var topup model.Topup
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&topup).Error
	if err != nil {
		return nil, notFound(err, "topup", id)
	}
	return &topup, nil
}

func (r *TopupRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Topup, error) {
	var topup model.Topup
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&topup).Error
	if err != nil {
		return nil, notFound(err, "topup", id)
	}
	return &topup, nil
}

// UpdateStatus 条件更新：只有当前状态等于 fromStatus 时才生效
func (r *TopupRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanTopupTransitionTo(fromStatus, toStatus) {
		return errs.ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.TopupStatusCompleted {
		updates["completed_at"] = time.Now()
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Topup{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrInvalidTransition
	}
	return nil
}

func (r *TopupRepository) ListByStatusAfterID(ctx context.Context, status string, afterID int64, limit int) ([]*model.Topup, error) {
	var topups []*model.Topup
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", status, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&topups).Error
	return topups, err
}
