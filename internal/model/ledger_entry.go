package model

import (
	"time"
)

// ============================================================================
// 资金方向 / 来源类型常量
// ============================================================================

const (
	DirectionIn  = "IN"  // 入账
	DirectionOut = "OUT" // 出账
)

const (
	SourceKindTopup   = "TOPUP"   // 充值
	SourceKindSubsidy = "SUBSIDY" // 学期补贴
	SourceKindCharge  = "CHARGE"  // 打印扣款
	SourceKindRefund  = "REFUND"  // 取消退款
)

// 产生流水的业务单据类型
const (
	RecordKindTopup        = "topup"
	RecordKindSubsidyGrant = "subsidy_grant"
	RecordKindPayment      = "payment"
	RecordKindRefund       = "refund"
)

// IsValidSourceKind 判断来源类型是否合法
func IsValidSourceKind(kind string) bool {
	switch kind {
	case SourceKindTopup, SourceKindSubsidy, SourceKindCharge, SourceKindRefund:
		return true
	}
	return false
}

// ============================================================================
// 账本流水实体
// ============================================================================

// LedgerEntry 钱包账本流水表
// 账户余额的唯一事实来源
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除，更正只能追加一笔反向流水（CompensatesID 指向原流水）
// 2. 每笔流水必须关联产生它的业务单据（SourceRecordKind + SourceRecordID）
// 3. Direction 与 Amount 符号冗余，写入前校验一致：IN ⇔ Amount > 0
// 4. 不记录"交易前后余额"，余额永远由 SUM(amount) 推导
type LedgerEntry struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo          string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`                            // 流水号（全局唯一）
	AccountID        int64     `gorm:"index:idx_ledger_account_created,priority:1;not null" json:"account_id"`           // 账户ID
	Amount           int64     `gorm:"not null" json:"amount"`                                                           // 金额（最小货币单位，正数入账，负数出账）
	Direction        string    `gorm:"type:varchar(8);not null" json:"direction"`                                        // IN / OUT
	SourceKind       string    `gorm:"type:varchar(16);not null" json:"source_kind"`                                     // TOPUP / SUBSIDY / CHARGE / REFUND
	SourceRecordKind string    `gorm:"type:varchar(32);index:idx_ledger_source,priority:1;not null" json:"source_record_kind"` // 业务单据类型
	SourceRecordID   int64     `gorm:"index:idx_ledger_source,priority:2;not null" json:"source_record_id"`              // 业务单据ID
	Description      string    `gorm:"type:varchar(256)" json:"description"`                                             // 备注
	CompensatesID    *int64    `gorm:"uniqueIndex" json:"compensates_id,omitempty"`                                      // 更正流水指向被更正的原流水，每条原流水最多更正一次
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_ledger_account_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}

// IsCompensation 是否为更正流水
func (e *LedgerEntry) IsCompensation() bool {
	return e.CompensatesID != nil
}
