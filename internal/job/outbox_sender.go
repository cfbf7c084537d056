package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"printledger/internal/infrastructure/metrics"
	"printledger/internal/infrastructure/mq"
	"printledger/internal/model"
	"printledger/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 把本地消息表中的账本事件投递出去
//
// 【至少一次】先发送再标记 SENT，标记失败时下一轮会重发，消费端按 event_id 去重
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     mq.Publisher
	logger        *zap.Logger
	maxRetryCount int
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, maxRetryCount int, logger *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		logger:        logger.Named("outbox"),
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// RunOnce 发送一批待发送消息，返回成功条数
func (s *OutboxSender) RunOnce(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		metrics.OutboxMessages.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			s.logger.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
			return false
		}
		s.logger.Debug("消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey))
		return true
	}

	s.logger.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if msg.RetryCount+1 >= s.maxRetryCount {
		metrics.OutboxMessages.WithLabelValues("failed").Inc()
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.logger.Error("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
		}
		return false
	}

	metrics.OutboxMessages.WithLabelValues("retry").Inc()
	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}
	return false
}
