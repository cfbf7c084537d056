package repository

import (
	"context"

	"gorm.io/gorm"

	"printledger/internal/model"
)

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) error {
	return pick(r.db, tx).WithContext(ctx).Create(refund).Error
}

func (r *RefundRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Refund, error) {
	var refund model.Refund
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&refund).Error
	if err != nil {
		return nil, notFound(err, "refund", id)
	}
	return &refund, nil
}

func (r *RefundRepository) GetByJobID(ctx context.Context, tx *gorm.DB, jobID int64) (*model.Refund, error) {
	var refund model.Refund
	err := pick(r.db, tx).WithContext(ctx).Where("job_id = ?", jobID).First(&refund).Error
	if err != nil {
		return nil, notFound(err, "refund for job", jobID)
	}
	return &refund, nil
}

func (r *RefundRepository) ListAfterID(ctx context.Context, afterID int64, limit int) ([]*model.Refund, error) {
	var refunds []*model.Refund
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&refunds).Error
	return refunds, err
}
