package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"printledger/internal/service"
)

// PaymentExpiryJob 定时关闭超时未完成的支付单
// 只改支付单和任务状态，不碰账本
type PaymentExpiryJob struct {
	payments  *service.PaymentService
	logger    *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewPaymentExpiryJob(payments *service.PaymentService, logger *zap.Logger) *PaymentExpiryJob {
	return &PaymentExpiryJob{
		payments:  payments,
		logger:    logger.Named("payment_expiry"),
		stopCh:    make(chan struct{}),
		interval:  10 * time.Second,
		batchSize: 100,
	}
}

func (j *PaymentExpiryJob) Start(ctx context.Context) {
	j.logger.Info("支付单超时任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *PaymentExpiryJob) Stop() {
	close(j.stopCh)
}

// RunOnce 处理一批超时支付单，返回关闭的条数
func (j *PaymentExpiryJob) RunOnce(ctx context.Context) int {
	n, err := j.payments.ExpirePayments(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("关闭超时支付单失败", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.logger.Info("本次关闭超时支付单", zap.Int("count", n))
	}
	return n
}
