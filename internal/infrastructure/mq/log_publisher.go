package mq

import (
	"go.uber.org/zap"
)

// LogPublisher kafka.enabled=false 时使用：事件只写日志，outbox 照常标记为已发送
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(topic, key string, value []byte) error {
	p.logger.Info("账本事件",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.ByteString("payload", value))
	return nil
}

func (p *LogPublisher) Close() error {
	return p.logger.Sync()
}
