package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"printledger/internal/errs"
	"printledger/internal/model"
)

// JobRepository 打印任务
//
// 【注意】价格快照只在 Create 时写入；UpdateStatus 只更新 status 一列，
// 不提供任何修改快照字段的方法
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, tx *gorm.DB, job *model.PrintJob) error {
	return pick(r.db, tx).WithContext(ctx).Create(job).Error
}

func (r *JobRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.PrintJob, error) {
	var job model.PrintJob
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, notFound(err, "print job", id)
	}
	return &job, nil
}

func (r *JobRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.PrintJob, error) {
	var job model.PrintJob
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, notFound(err, "print job", id)
	}
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if !model.CanJobTransitionTo(fromStatus, toStatus) {
		return errs.ErrInvalidTransition
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.PrintJob{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrInvalidTransition
	}
	return nil
}

func (r *JobRepository) ListByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.PrintJob, int64, error) {
	var jobs []*model.PrintJob
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.PrintJob{}).
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
		Find(&jobs).Error

	return jobs, total, err
}
