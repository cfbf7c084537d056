package billing

import (
	"github.com/shopspring/decimal"

	"printledger/internal/errs"
	"printledger/internal/model"
)

// RefundAmount 按未交付比例计算退款
//
//	refund = final_price × (total_units − units_delivered) / total_units
//
// 结果向下截断到最小货币单位，宁少退不多退
func RefundAmount(finalPrice, totalUnits, unitsDelivered int64) (int64, error) {
	if finalPrice < 0 {
		return 0, errs.Validation("final_price", "不能为负数, got %d", finalPrice)
	}
	if totalUnits <= 0 {
		return 0, errs.Validation("total_units", "必须大于0, got %d", totalUnits)
	}
	if unitsDelivered < 0 || unitsDelivered > totalUnits {
		return 0, errs.Validation("units_delivered", "必须在 [0, %d] 区间, got %d", totalUnits, unitsDelivered)
	}

	notDelivered := totalUnits - unitsDelivered
	q, _ := decimal.NewFromInt(finalPrice).
		Mul(decimal.NewFromInt(notDelivered)).
		QuoRem(decimal.NewFromInt(totalUnits), 0)
	return q.IntPart(), nil
}

// CanRefund 只有非终态任务允许取消退款
func CanRefund(jobStatus string) bool {
	return !model.IsJobTerminal(jobStatus)
}
