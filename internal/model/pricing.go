package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 纸张规格
const (
	SizeA3 = "A3"
	SizeA4 = "A4"
	SizeA5 = "A5"
)

// 单双面
const (
	SidesSimplex = "SIMPLEX"
	SidesDuplex  = "DUPLEX"
)

// 色彩模式
const (
	ColorModeBW    = "BW"
	ColorModeColor = "COLOR"
)

// SidesFor 把任务的双面标记映射为目录查询键
func SidesFor(duplex bool) string {
	if duplex {
		return SidesDuplex
	}
	return SidesSimplex
}

// ============================================================================
// 价格目录
// ============================================================================
//
// 【设计原则】目录只追加不修改：
// 调价 = 插入一行新的 active 记录 + 把旧记录 is_active 置为 false（同一事务）
// 打印任务的价格快照引用的是具体行ID，所以旧行必须永久保留

// PageSizePrice 纸张基础单价（按规格 + 单双面）
// 双面、纸张等效系数都折算进这里的单价，计价公式只做一条乘法链
type PageSizePrice struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SizeClass     string          `gorm:"type:varchar(16);index:idx_base_price_lookup,priority:1;not null" json:"size_class"`
	Sides         string          `gorm:"type:varchar(16);index:idx_base_price_lookup,priority:2;not null" json:"sides"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"unit_price"`
	IsActive      bool            `gorm:"index:idx_base_price_lookup,priority:3;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at"`
}

func (PageSizePrice) TableName() string {
	return "page_size_price"
}

// ColorModePrice 色彩模式倍率
type ColorModePrice struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ColorMode     string          `gorm:"type:varchar(16);index:idx_color_lookup,priority:1;not null" json:"color_mode"`
	Multiplier    decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"multiplier"`
	IsActive      bool            `gorm:"index:idx_color_lookup,priority:2;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at"`
}

func (ColorModePrice) TableName() string {
	return "color_mode_price"
}

// DiscountTier 批量折扣档位：总单位数 >= MinUnits 时享受 Percent 折扣
type DiscountTier struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string          `gorm:"type:varchar(64)" json:"name"`
	MinUnits      int64           `gorm:"index;not null" json:"min_units"`
	Percent       decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"percent"` // 0.10 表示 10%
	IsActive      bool            `gorm:"index;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at"`
}

func (DiscountTier) TableName() string {
	return "discount_tier"
}

// TopupBonusTier 充值赠送档位：充值金额 >= MinDeposit 时赠送 BonusPercent
type TopupBonusTier struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string          `gorm:"type:varchar(64)" json:"name"`
	MinDeposit    int64           `gorm:"index;not null" json:"min_deposit"`
	BonusPercent  decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"bonus_percent"`
	IsActive      bool            `gorm:"index;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeactivatedAt *time.Time      `json:"deactivated_at"`
}

func (TopupBonusTier) TableName() string {
	return "topup_bonus_tier"
}
