package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	JobStatusPendingPayment = "PENDING_PAYMENT"
	JobStatusQueued         = "QUEUED"
	JobStatusPrinting       = "PRINTING"
	JobStatusCompleted      = "COMPLETED"
	JobStatusCanceled       = "CANCELED"
)

var jobTransitions = map[string][]string{
	JobStatusPendingPayment: {JobStatusQueued, JobStatusCanceled},
	JobStatusQueued:         {JobStatusPrinting, JobStatusCanceled},
	JobStatusPrinting:       {JobStatusCompleted, JobStatusCanceled},
}

func CanJobTransitionTo(current, target string) bool {
	return canTransition(jobTransitions, current, target)
}

// IsJobTerminal COMPLETED / CANCELED 为终态
func IsJobTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusCanceled
}

// PricingSnapshot 任务创建时冻结的价格快照
//
// 【重要】快照写入后永不修改，即使价格目录之后发生变化。
// 引用的目录行（BasePriceID 等）只会被停用不会被删除，历史价格始终可追溯。
type PricingSnapshot struct {
	BasePriceID       int64               `gorm:"not null" json:"base_price_id"`
	ColorMultiplierID int64               `gorm:"not null" json:"color_multiplier_id"`
	DiscountTierID    *int64              `json:"discount_tier_id"`
	TotalUnits        int64               `gorm:"not null" json:"total_units"`
	Subtotal          int64               `gorm:"not null" json:"subtotal"`
	DiscountPercent   decimal.NullDecimal `gorm:"type:decimal(6,4)" json:"discount_percent"`
	DiscountAmount    int64               `gorm:"not null" json:"discount_amount"`
	FinalPrice        int64               `gorm:"not null" json:"final_price"`
}

// PrintJob 打印任务（只保留账本/计价相关字段）
type PrintJob struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	JobNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"job_no"`
	AccountID int64           `gorm:"index;not null" json:"account_id"`
	FileRef   string          `gorm:"type:varchar(128)" json:"file_ref"` // 文档服务中的文件标识
	Pages     int64           `gorm:"not null" json:"pages"`
	Copies    int64           `gorm:"not null" json:"copies"`
	SizeClass string          `gorm:"type:varchar(16);not null" json:"size_class"`
	ColorMode string          `gorm:"type:varchar(16);not null" json:"color_mode"`
	Duplex    bool            `gorm:"not null" json:"duplex"`
	Pricing   PricingSnapshot `gorm:"embedded" json:"pricing"`
	Status    string          `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PrintJob) TableName() string {
	return "print_job"
}
