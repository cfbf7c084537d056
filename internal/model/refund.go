package model

import (
	"time"
)

// Refund 打印任务取消退款记录，与 PrintJob 一一对应
// 退款金额不落库，由 final_price × units_not_delivered / total_units 推导
type Refund struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundNo          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"refund_no"`
	JobID             int64     `gorm:"uniqueIndex;not null" json:"job_id"`
	AccountID         int64     `gorm:"index;not null" json:"account_id"`
	UnitsNotDelivered int64     `gorm:"not null" json:"units_not_delivered"`
	Reason            string    `gorm:"type:varchar(256)" json:"reason"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Refund) TableName() string {
	return "refund"
}
