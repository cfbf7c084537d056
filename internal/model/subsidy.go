package model

import (
	"time"
)

// SubsidyGrant 学期补贴发放记录
// (account_id, period_id) 唯一，Granted 由 false 变为 true 时产生一笔流水
type SubsidyGrant struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64      `gorm:"uniqueIndex:idx_subsidy_account_period,priority:1;not null" json:"account_id"`
	PeriodID  string     `gorm:"type:varchar(32);uniqueIndex:idx_subsidy_account_period,priority:2;not null" json:"period_id"` // 学期标识，如 2025-HK1
	Amount    int64      `gorm:"not null" json:"amount"`
	Granted   bool       `gorm:"not null" json:"granted"`
	GrantedAt *time.Time `json:"granted_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SubsidyGrant) TableName() string {
	return "subsidy_grant"
}
