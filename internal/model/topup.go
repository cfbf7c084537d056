package model

import (
	"time"
)

const (
	TopupStatusPending   = "PENDING"
	TopupStatusCompleted = "COMPLETED"
	TopupStatusFailed    = "FAILED"
)

var topupTransitions = map[string][]string{
	TopupStatusPending: {TopupStatusCompleted, TopupStatusFailed},
}

func CanTopupTransitionTo(current, target string) bool {
	return canTransition(topupTransitions, current, target)
}

// Topup 充值单
// 只有 PENDING -> COMPLETED 这一次状态变化会产生流水，且只产生一次
type Topup struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TopupNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"topup_no"`
	AccountID       int64      `gorm:"index;not null" json:"account_id"`
	DepositedAmount int64      `gorm:"not null" json:"deposited_amount"` // 实际充值金额
	BonusAmount     int64      `gorm:"not null;default:0" json:"bonus_amount"`
	TotalCredited   int64      `gorm:"not null" json:"total_credited"` // = DepositedAmount + BonusAmount
	BonusTierID     *int64     `json:"bonus_tier_id"`
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Topup) TableName() string {
	return "topup"
}
