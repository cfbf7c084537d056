package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"printledger/internal/model"
)

// CatalogRepository 价格目录
//
// 写操作只有 Create 和 Deactivate；价格列永不 UPDATE
// 查询当前有效行时按 id 倒序取第一条，新插入的行总是胜出
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ---------------------------------------------------------------------------
// 纸张单价
// ---------------------------------------------------------------------------

func (r *CatalogRepository) CreateBasePrice(ctx context.Context, tx *gorm.DB, row *model.PageSizePrice) error {
	return pick(r.db, tx).WithContext(ctx).Create(row).Error
}

func (r *CatalogRepository) ActiveBasePrice(ctx context.Context, tx *gorm.DB, sizeClass, sides string) (*model.PageSizePrice, error) {
	var row model.PageSizePrice
	err := pick(r.db, tx).WithContext(ctx).
		Where("size_class = ? AND sides = ? AND is_active = ?", sizeClass, sides, true).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "active base price", fmt.Sprintf("%s/%s", sizeClass, sides))
	}
	return &row, nil
}

func (r *CatalogRepository) DeactivateBasePrices(ctx context.Context, tx *gorm.DB, sizeClass, sides string, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.PageSizePrice{}).
		Where("size_class = ? AND sides = ? AND is_active = ?", sizeClass, sides, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *CatalogRepository) GetBasePrice(ctx context.Context, id int64) (*model.PageSizePrice, error) {
	var row model.PageSizePrice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "base price", id)
	}
	return &row, nil
}

func (r *CatalogRepository) ListActiveBasePrices(ctx context.Context) ([]*model.PageSizePrice, error) {
	var rows []*model.PageSizePrice
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("size_class ASC, sides ASC").
		Find(&rows).Error
	return rows, err
}

// ---------------------------------------------------------------------------
// 色彩倍率
// ---------------------------------------------------------------------------

func (r *CatalogRepository) CreateColorMultiplier(ctx context.Context, tx *gorm.DB, row *model.ColorModePrice) error {
	return pick(r.db, tx).WithContext(ctx).Create(row).Error
}

func (r *CatalogRepository) ActiveColorMultiplier(ctx context.Context, tx *gorm.DB, mode string) (*model.ColorModePrice, error) {
	var row model.ColorModePrice
	err := pick(r.db, tx).WithContext(ctx).
		Where("color_mode = ? AND is_active = ?", mode, true).
		Order("id DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err, "active color multiplier", mode)
	}
	return &row, nil
}

func (r *CatalogRepository) DeactivateColorMultipliers(ctx context.Context, tx *gorm.DB, mode string, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.ColorModePrice{}).
		Where("color_mode = ? AND is_active = ?", mode, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *CatalogRepository) GetColorMultiplier(ctx context.Context, id int64) (*model.ColorModePrice, error) {
	var row model.ColorModePrice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "color multiplier", id)
	}
	return &row, nil
}

func (r *CatalogRepository) ListActiveColorMultipliers(ctx context.Context) ([]*model.ColorModePrice, error) {
	var rows []*model.ColorModePrice
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("color_mode ASC").Find(&rows).Error
	return rows, err
}

// ---------------------------------------------------------------------------
// 折扣档位
// ---------------------------------------------------------------------------

func (r *CatalogRepository) CreateDiscountTier(ctx context.Context, tx *gorm.DB, row *model.DiscountTier) error {
	return pick(r.db, tx).WithContext(ctx).Create(row).Error
}

// ApplicableDiscountTier 门槛不超过 totalUnits 的档位中门槛最高的一档，没有则返回 nil, nil
func (r *CatalogRepository) ApplicableDiscountTier(ctx context.Context, tx *gorm.DB, totalUnits int64) (*model.DiscountTier, error) {
	var rows []*model.DiscountTier
	err := pick(r.db, tx).WithContext(ctx).
		Where("is_active = ? AND min_units <= ?", true, totalUnits).
		Order("min_units DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *CatalogRepository) DeactivateDiscountTiers(ctx context.Context, tx *gorm.DB, minUnits int64, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.DiscountTier{}).
		Where("min_units = ? AND is_active = ?", minUnits, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *CatalogRepository) DeactivateDiscountTier(ctx context.Context, tx *gorm.DB, id int64, at time.Time) (int64, error) {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.DiscountTier{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at})
	return result.RowsAffected, result.Error
}

func (r *CatalogRepository) GetDiscountTier(ctx context.Context, id int64) (*model.DiscountTier, error) {
	var row model.DiscountTier
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "discount tier", id)
	}
	return &row, nil
}

func (r *CatalogRepository) ListActiveDiscountTiers(ctx context.Context) ([]*model.DiscountTier, error) {
	var rows []*model.DiscountTier
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("min_units ASC").Find(&rows).Error
	return rows, err
}

// ---------------------------------------------------------------------------
// 充值赠送档位
// ---------------------------------------------------------------------------

func (r *CatalogRepository) CreateTopupBonusTier(ctx context.Context, tx *gorm.DB, row *model.TopupBonusTier) error {
	return pick(r.db, tx).WithContext(ctx).Create(row).Error
}

func (r *CatalogRepository) ApplicableTopupBonusTier(ctx context.Context, tx *gorm.DB, deposit int64) (*model.TopupBonusTier, error) {
	var rows []*model.TopupBonusTier
	err := pick(r.db, tx).WithContext(ctx).
		Where("is_active = ? AND min_deposit <= ?", true, deposit).
		Order("min_deposit DESC").
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *CatalogRepository) DeactivateTopupBonusTiers(ctx context.Context, tx *gorm.DB, minDeposit int64, at time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.TopupBonusTier{}).
		Where("min_deposit = ? AND is_active = ?", minDeposit, true).
		Updates(map[string]interface{}{"is_active": false, "deactivated_at": at}).Error
}

func (r *CatalogRepository) ListActiveTopupBonusTiers(ctx context.Context) ([]*model.TopupBonusTier, error) {
	var rows []*model.TopupBonusTier
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("min_deposit ASC").Find(&rows).Error
	return rows, err
}
