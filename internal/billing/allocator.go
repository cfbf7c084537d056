// Package billing 支付分配与取消退款的纯计算
package billing

import (
	"printledger/internal/errs"
)

// 支付方式
const (
	MethodBalance = "BALANCE" // 全部余额支付
	MethodMixed   = "MIXED"   // 余额 + 外部渠道
	MethodDirect  = "DIRECT"  // 全部外部渠道
)

// Allocation 一笔任务价格在钱包余额与外部渠道之间的拆分
type Allocation struct {
	FromBalance int64  `json:"from_balance"`
	Direct      int64  `json:"direct"`
	Method      string `json:"method"`
}

// Allocate 按当前余额拆分任务价格
//
// 【注意】这里只是"计划"，可以重复计算；
// 钱包真正扣款发生在支付单变为 COMPLETED 时。
func Allocate(price, balance int64) (Allocation, error) {
	if price < 0 {
		return Allocation{}, errs.Validation("price", "不能为负数, got %d", price)
	}

	switch {
	case balance >= price:
		return Allocation{FromBalance: price, Direct: 0, Method: MethodBalance}, nil
	case balance > 0:
		return Allocation{FromBalance: balance, Direct: price - balance, Method: MethodMixed}, nil
	default:
		return Allocation{FromBalance: 0, Direct: price, Method: MethodDirect}, nil
	}
}
