package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/errs"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/model"
	"printledger/internal/pricing"
	"printledger/internal/repository"
)

// CatalogService 价格目录
//
// 【调价 = 追加】每次调价插入一行新的 active 记录，同一事务内停用旧记录，
// 读者要么看到旧价要么看到新价，不会看到"都停用"的中间状态。
// 同一条目的并发调价用 Locker 串行化。
type CatalogService struct {
	db          *gorm.DB
	locker      lock.Locker
	logger      *zap.Logger
	catalogRepo *repository.CatalogRepository
}

func NewCatalogService(db *gorm.DB, locker lock.Locker, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		locker:      locker,
		logger:      logger.Named("catalog"),
		catalogRepo: repository.NewCatalogRepository(db),
	}
}

// ActiveBasePrice 当前有效的纸张单价
func (s *CatalogService) ActiveBasePrice(ctx context.Context, sizeClass, sides string) (*model.PageSizePrice, error) {
	return s.catalogRepo.ActiveBasePrice(ctx, nil, sizeClass, sides)
}

// ActiveColorMultiplier 当前有效的色彩倍率
func (s *CatalogService) ActiveColorMultiplier(ctx context.Context, mode string) (*model.ColorModePrice, error) {
	return s.catalogRepo.ActiveColorMultiplier(ctx, nil, mode)
}

// ApplicableDiscountTier 门槛 <= totalUnits 中门槛最高的档位，没有返回 nil
func (s *CatalogService) ApplicableDiscountTier(ctx context.Context, totalUnits int64) (*model.DiscountTier, error) {
	if totalUnits <= 0 {
		return nil, errs.Validation("total_units", "必须大于0, got %d", totalUnits)
	}
	return s.catalogRepo.ApplicableDiscountTier(ctx, nil, totalUnits)
}

// ApplicableTopupBonusTier 充值赠送档位，没有返回 nil
func (s *CatalogService) ApplicableTopupBonusTier(ctx context.Context, deposit int64) (*model.TopupBonusTier, error) {
	return s.catalogRepo.ApplicableTopupBonusTier(ctx, nil, deposit)
}

// SetBasePrice 调整纸张单价
func (s *CatalogService) SetBasePrice(ctx context.Context, sizeClass, sides string, unitPrice decimal.Decimal) (*model.PageSizePrice, error) {
	if sizeClass == "" {
		return nil, errs.Validation("size_class", "不能为空")
	}
	if sides != model.SidesSimplex && sides != model.SidesDuplex {
		return nil, errs.Validation("sides", "必须是 %s 或 %s, got %q", model.SidesSimplex, model.SidesDuplex, sides)
	}
	if !unitPrice.IsPositive() {
		return nil, errs.Validation("unit_price", "必须大于0, got %s", unitPrice)
	}

	row := &model.PageSizePrice{SizeClass: sizeClass, Sides: sides, UnitPrice: unitPrice, IsActive: true}
	err := s.supersede(ctx, lock.CatalogKey("base", sizeClass, sides), func(tx *gorm.DB, now time.Time) error {
		if err := s.catalogRepo.DeactivateBasePrices(ctx, tx, sizeClass, sides, now); err != nil {
			return err
		}
		return s.catalogRepo.CreateBasePrice(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("纸张单价已更新",
		zap.String("size_class", sizeClass),
		zap.String("sides", sides),
		zap.String("unit_price", unitPrice.String()),
		zap.Int64("id", row.ID))
	return row, nil
}

// SetColorMultiplier 调整色彩倍率
func (s *CatalogService) SetColorMultiplier(ctx context.Context, mode string, multiplier decimal.Decimal) (*model.ColorModePrice, error) {
	if mode == "" {
		return nil, errs.Validation("color_mode", "不能为空")
	}
	if !multiplier.IsPositive() {
		return nil, errs.Validation("multiplier", "必须大于0, got %s", multiplier)
	}

	row := &model.ColorModePrice{ColorMode: mode, Multiplier: multiplier, IsActive: true}
	err := s.supersede(ctx, lock.CatalogKey("color", mode), func(tx *gorm.DB, now time.Time) error {
		if err := s.catalogRepo.DeactivateColorMultipliers(ctx, tx, mode, now); err != nil {
			return err
		}
		return s.catalogRepo.CreateColorMultiplier(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("色彩倍率已更新",
		zap.String("color_mode", mode),
		zap.String("multiplier", multiplier.String()),
		zap.Int64("id", row.ID))
	return row, nil
}

// SetDiscountTier 新增或替换同门槛的折扣档位
func (s *CatalogService) SetDiscountTier(ctx context.Context, name string, minUnits int64, percent decimal.Decimal) (*model.DiscountTier, error) {
	if minUnits <= 0 {
		return nil, errs.Validation("min_units", "必须大于0, got %d", minUnits)
	}
	if err := pricing.ValidatePercent("percent", percent); err != nil {
		return nil, err
	}

	row := &model.DiscountTier{Name: name, MinUnits: minUnits, Percent: percent, IsActive: true}
	err := s.supersede(ctx, lock.CatalogKey("discount"), func(tx *gorm.DB, now time.Time) error {
		if err := s.catalogRepo.DeactivateDiscountTiers(ctx, tx, minUnits, now); err != nil {
			return err
		}
		return s.catalogRepo.CreateDiscountTier(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("折扣档位已更新",
		zap.Int64("min_units", minUnits),
		zap.String("percent", percent.String()),
		zap.Int64("id", row.ID))
	return row, nil
}

// DeactivateDiscountTier 停用一个折扣档位（不插入替代行）
func (s *CatalogService) DeactivateDiscountTier(ctx context.Context, id int64) error {
	return s.supersede(ctx, lock.CatalogKey("discount"), func(tx *gorm.DB, now time.Time) error {
		n, err := s.catalogRepo.DeactivateDiscountTier(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("active discount tier %d: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}

// SetTopupBonusTier 新增或替换同门槛的充值赠送档位
func (s *CatalogService) SetTopupBonusTier(ctx context.Context, name string, minDeposit int64, bonusPercent decimal.Decimal) (*model.TopupBonusTier, error) {
	if minDeposit <= 0 {
		return nil, errs.Validation("min_deposit", "必须大于0, got %d", minDeposit)
	}
	if err := pricing.ValidatePercent("bonus_percent", bonusPercent); err != nil {
		return nil, err
	}

	row := &model.TopupBonusTier{Name: name, MinDeposit: minDeposit, BonusPercent: bonusPercent, IsActive: true}
	err := s.supersede(ctx, lock.CatalogKey("topup_bonus"), func(tx *gorm.DB, now time.Time) error {
		if err := s.catalogRepo.DeactivateTopupBonusTiers(ctx, tx, minDeposit, now); err != nil {
			return err
		}
		return s.catalogRepo.CreateTopupBonusTier(ctx, tx, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Catalog 当前有效的全部目录项
type Catalog struct {
	BasePrices       []*model.PageSizePrice  `json:"base_prices"`
	ColorMultipliers []*model.ColorModePrice `json:"color_multipliers"`
	DiscountTiers    []*model.DiscountTier   `json:"discount_tiers"`
	TopupBonusTiers  []*model.TopupBonusTier `json:"topup_bonus_tiers"`
}

func (s *CatalogService) ActiveCatalog(ctx context.Context) (*Catalog, error) {
	var (
		c   Catalog
		err error
	)
	if c.BasePrices, err = s.catalogRepo.ListActiveBasePrices(ctx); err != nil {
		return nil, err
	}
	if c.ColorMultipliers, err = s.catalogRepo.ListActiveColorMultipliers(ctx); err != nil {
		return nil, err
	}
	if c.DiscountTiers, err = s.catalogRepo.ListActiveDiscountTiers(ctx); err != nil {
		return nil, err
	}
	if c.TopupBonusTiers, err = s.catalogRepo.ListActiveTopupBonusTiers(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// SeedDefaults 初始化默认目录（已有有效单价时跳过）
//
// 单价按页（total_units = 页数×份数）计：A4 单面 1000/页，双面 900/页（两页共用一张纸）；A3 = 2 倍，A5 = 0.5 倍
// 黑白 ×1.0，彩色 ×1.5；批量折扣 100页 10%、200页 12.5%、500页 20%
// 充值满 100000 赠送 10%
func (s *CatalogService) SeedDefaults(ctx context.Context) error {
	if _, err := s.ActiveBasePrice(ctx, model.SizeA4, model.SidesSimplex); err == nil {
		s.logger.Info("价格目录已存在，跳过初始化")
		return nil
	}

	basePrices := []struct {
		size, sides string
		price       string
	}{
		{model.SizeA4, model.SidesSimplex, "1000"},
		{model.SizeA4, model.SidesDuplex, "900"},
		{model.SizeA3, model.SidesSimplex, "2000"},
		{model.SizeA3, model.SidesDuplex, "1800"},
		{model.SizeA5, model.SidesSimplex, "500"},
		{model.SizeA5, model.SidesDuplex, "450"},
	}
	for _, bp := range basePrices {
		if _, err := s.SetBasePrice(ctx, bp.size, bp.sides, decimal.RequireFromString(bp.price)); err != nil {
			return err
		}
	}
	if _, err := s.SetColorMultiplier(ctx, model.ColorModeBW, decimal.NewFromInt(1)); err != nil {
		return err
	}
	if _, err := s.SetColorMultiplier(ctx, model.ColorModeColor, decimal.RequireFromString("1.5")); err != nil {
		return err
	}

	tiers := []struct {
		name    string
		units   int64
		percent string
	}{
		{"100 pages", 100, "0.10"},
		{"200 pages", 200, "0.125"},
		{"500 pages", 500, "0.20"},
	}
	for _, t := range tiers {
		if _, err := s.SetDiscountTier(ctx, t.name, t.units, decimal.RequireFromString(t.percent)); err != nil {
			return err
		}
	}
	if _, err := s.SetTopupBonusTier(ctx, "100k bonus", 100000, decimal.RequireFromString("0.10")); err != nil {
		return err
	}

	s.logger.Info("默认价格目录初始化完成")
	return nil
}

func (s *CatalogService) supersede(ctx context.Context, key string, fn func(tx *gorm.DB, now time.Time) error) error {
	unlock, err := s.locker.Obtain(ctx, key)
	if err != nil {
		return fmt.Errorf("获取目录锁失败: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			s.logger.Warn("释放目录锁失败", zap.String("key", key), zap.Error(err))
		}
	}()

	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, now)
	})
}
