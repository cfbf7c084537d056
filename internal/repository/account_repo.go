package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"printledger/internal/errs"
	"printledger/internal/model"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var account model.Account
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, notFound(err, "account", id)
	}
	return &account, nil
}

func (r *AccountRepository) GetByUserRef(ctx context.Context, userRef string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("user_ref = ?", userRef).First(&account).Error
	if err != nil {
		return nil, notFound(err, "account", userRef)
	}
	return &account, nil
}

// GetOrCreate 并发安全的获取或创建（唯一索引 + ON CONFLICT DO NOTHING）
func (r *AccountRepository) GetOrCreate(ctx context.Context, userRef string) (*model.Account, error) {
	account, err := r.GetByUserRef(ctx, userRef)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_ref"}},
			DoNothing: true,
		}).
		Create(&model.Account{UserRef: userRef}).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserRef(ctx, userRef)
}
