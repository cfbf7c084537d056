package model

import (
	"time"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusExpired   = "EXPIRED"
)

var paymentTransitions = map[string][]string{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired},
}

func CanPaymentTransitionTo(current, target string) bool {
	return canTransition(paymentTransitions, current, target)
}

// Payment 打印任务支付单，与 PrintJob 一一对应
//
// 【关键点】分配（AmountFromBalance / AmountDirect）只是计划，
// 只有状态变为 COMPLETED 时才真正从钱包扣款（写一笔 OUT/CHARGE 流水）
type Payment struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	JobID             int64      `gorm:"uniqueIndex;not null" json:"job_id"`
	AccountID         int64      `gorm:"index;not null" json:"account_id"`
	AmountFromBalance int64      `gorm:"not null" json:"amount_from_balance"`
	AmountDirect      int64      `gorm:"not null" json:"amount_direct"` // 走外部支付渠道的部分，不进账本
	Total             int64      `gorm:"not null" json:"total"`
	Method            string     `gorm:"type:varchar(16);not null" json:"method"` // BALANCE / MIXED / DIRECT
	Status            string     `gorm:"type:varchar(20);index:idx_payment_status_expires,priority:1;not null" json:"status"`
	ExpiresAt         time.Time  `gorm:"index:idx_payment_status_expires,priority:2;not null" json:"expires_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}
