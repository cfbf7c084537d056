package model

import (
	"time"
)

// Account 钱包账户表
// 每个终端用户一个账户，UserRef 来自身份/学籍系统的稳定标识
//
// 【注意】账户表不保存余额字段，余额只能由 ledger_entry 汇总得出
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserRef   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_ref"` // 外部用户标识（学号等）
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Account) TableName() string {
	return "account"
}
