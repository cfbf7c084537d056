package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"printledger/internal/errs"
	"printledger/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return pick(r.db, tx).WithContext(ctx).Create(payment).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Payment, error) {
	var payment model.Payment
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Payment, error) {
	var payment model.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByJobID(ctx context.Context, tx *gorm.DB, jobID int64) (*model.Payment, error) {
	var payment model.Payment
	err := pick(r.db, tx).WithContext(ctx).Where("job_id = ?", jobID).First(&payment).Error
	if err != nil {
		return nil, notFound(err, "payment for job", jobID)
	}
	return &payment, nil
}

// UpdateStatus 条件更新：WHERE status = fromStatus，影响行数为0说明已被并发修改
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanPaymentTransitionTo(fromStatus, toStatus) {
		return errs.ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.PaymentStatusCompleted {
		updates["completed_at"] = time.Now()
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Payment{}).
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

// GetExpiredPayments 超过有效期仍处于 PENDING 的支付单
func (r *PaymentRepository) GetExpiredPayments(ctx context.Context, now time.Time, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByStatusAfterID(ctx context.Context, status string, afterID int64, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND id > ?", status, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) ListByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Payment, int64, error) {
	var payments []*model.Payment
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Payment{}).
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
		Find(&payments).Error

	return payments, total, err
}
