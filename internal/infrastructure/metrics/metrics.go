// Package metrics 账本相关的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"printledger/internal/errs"
)

var (
	// LedgerEntriesAppended 追加的流水条数（按来源类型）
	LedgerEntriesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printledger",
		Name:      "ledger_entries_appended_total",
		Help:      "Ledger entries committed, by source kind.",
	}, []string{"source_kind"})

	// LedgerAmount 入账/出账金额累计（最小货币单位）
	LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printledger",
		Name:      "ledger_amount_total",
		Help:      "Absolute money moved through the ledger, by direction.",
	}, []string{"direction"})

	// RecorderOperations 业务记账操作结果
	RecorderOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printledger",
		Name:      "recorder_operations_total",
		Help:      "Domain transaction recorder outcomes.",
	}, []string{"operation", "outcome"})

	// InvariantViolations 对账发现的不一致
	InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printledger",
		Name:      "invariant_violations_total",
		Help:      "Ledger/business-record mismatches found by the reconciler.",
	}, []string{"check"})

	// OutboxMessages 消息投递结果
	OutboxMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printledger",
		Name:      "outbox_messages_total",
		Help:      "Outbox deliveries, by result.",
	}, []string{"result"})
)

// Outcome 把 error 归类为指标标签
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errs.IsValidation(err):
		return "validation"
	case errs.IsDuplicate(err):
		return "duplicate"
	case errs.IsInsufficientFunds(err):
		return "insufficient_funds"
	case errs.IsInvariantViolation(err):
		return "invariant_violation"
	default:
		return "error"
	}
}
