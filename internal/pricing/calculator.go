// Package pricing 打印任务计价（纯函数，无副作用）
//
//	subtotal      = total_units × base_price × color_multiplier
//	discount_amt  = subtotal × discount_percent
//	final_price   = subtotal − discount_amt
//
// 全程用 decimal 精确计算，只在最后一步按四舍五入（round-half-up）取整到最小货币单位。
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"printledger/internal/errs"
)

// Input 计价输入，单价/倍率/折扣来自价格目录的当前有效行
type Input struct {
	Pages           int64
	Copies          int64
	BasePrice       decimal.Decimal
	ColorMultiplier decimal.Decimal
	DiscountPercent decimal.Decimal // 无适用折扣档位时为 0
}

// Quote 计价结果
type Quote struct {
	TotalUnits      int64
	Subtotal        int64
	DiscountPercent decimal.Decimal
	DiscountAmount  int64
	FinalPrice      int64
}

// TotalUnits 页数 × 份数
func TotalUnits(pages, copies int64) (int64, error) {
	if pages <= 0 {
		return 0, errs.Validation("pages", "必须大于0, got %d", pages)
	}
	if copies <= 0 {
		return 0, errs.Validation("copies", "必须大于0, got %d", copies)
	}
	if pages > math.MaxInt64/copies {
		return 0, errs.Validation("copies", "页数×份数超出范围, pages=%d copies=%d", pages, copies)
	}
	return pages * copies, nil
}

// Calculate 计算价格
//
// 【取整规则】
// final_price 由精确值 (subtotal - discount) 一次取整得到；
// subtotal 单独取整，discount_amount = subtotal - final_price，
// 保证三者在整数层面恒等，且不会出现中间步骤的累积误差。
func Calculate(in Input) (Quote, error) {
	units, err := TotalUnits(in.Pages, in.Copies)
	if err != nil {
		return Quote{}, err
	}
	if !in.BasePrice.IsPositive() {
		return Quote{}, errs.Validation("base_price", "必须大于0, got %s", in.BasePrice)
	}
	if !in.ColorMultiplier.IsPositive() {
		return Quote{}, errs.Validation("color_multiplier", "必须大于0, got %s", in.ColorMultiplier)
	}
	if err := ValidatePercent("discount_percent", in.DiscountPercent); err != nil {
		return Quote{}, err
	}

	exactSubtotal := decimal.NewFromInt(units).Mul(in.BasePrice).Mul(in.ColorMultiplier)
	exactDiscount := exactSubtotal.Mul(in.DiscountPercent)

	if exactSubtotal.Round(0).GreaterThan(maxAmount) {
		return Quote{}, errs.Validation("subtotal", "金额超出范围, got %s", exactSubtotal)
	}

	subtotal := roundHalfUp(exactSubtotal)
	final := roundHalfUp(exactSubtotal.Sub(exactDiscount))

	return Quote{
		TotalUnits:      units,
		Subtotal:        subtotal,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  subtotal - final,
		FinalPrice:      final,
	}, nil
}

// ValidatePercent 折扣/赠送比例必须在 [0, 1)
func ValidatePercent(field string, p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errs.Validation(field, "必须在 [0, 1) 区间, got %s", p)
	}
	return nil
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// 金额均为非负数，Round(0) 的"远离零"即为四舍五入
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
