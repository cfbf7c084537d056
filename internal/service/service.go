// Package service 记账与计价业务
//
// 【记账流程】每个会动钱包的操作都是同一个套路：
//  1. 事务内条件更新业务单据状态（WHERE status = from）
//  2. 同一事务内 ledger.Append 追加流水
//  3. 同一事务内写 outbox 消息
//
// 扣款和退款在事务外先拿账户锁，读余额→判断→追加 三步在锁内完成。
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"printledger/internal/infrastructure/lock"
	"printledger/internal/infrastructure/metrics"
)

// withLock 持有 key 对应的锁执行 fn
func withLock(ctx context.Context, locker lock.Locker, logger *zap.Logger, key string, fn func() error) error {
	unlock, err := locker.Obtain(ctx, key)
	if err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			logger.Warn("释放锁失败", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

// observe 记录记账操作结果
func observe(operation string, err error) {
	metrics.RecorderOperations.WithLabelValues(operation, metrics.Outcome(err)).Inc()
}
