package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"printledger/internal/model"
	"printledger/internal/repository"
)

// 账本事件类型
const (
	EventTopupCompleted   = "topup.completed"
	EventSubsidyGranted   = "subsidy.granted"
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentExpired   = "payment.expired"
	EventJobRefunded      = "job.refunded"
	EventEntryCompensated = "entry.compensated"
)

// LedgerEvent 通过 outbox 投递到 Kafka 的消息体
type LedgerEvent struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	AccountID  int64     `json:"account_id"`
	RecordKind string    `json:"record_kind"`
	RecordID   int64     `json:"record_id"`
	RecordNo   string    `json:"record_no,omitempty"`
	Amount     int64     `json:"amount"`
	EntryNos   []string  `json:"entry_nos,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// eventWriter 在业务事务中写 outbox 消息
type eventWriter struct {
	outboxRepo *repository.OutboxRepository
	topic      string
}

func newEventWriter(db *gorm.DB, topic string) *eventWriter {
	return &eventWriter{
		outboxRepo: repository.NewOutboxRepository(db),
		topic:      topic,
	}
}

// write 消息 key 使用账户ID，同一账户的事件落在同一分区，消费端按顺序处理
func (w *eventWriter) write(ctx context.Context, tx *gorm.DB, ev LedgerEvent, entries ...*model.LedgerEntry) error {
	ev.EventID = uuid.NewString()
	ev.OccurredAt = time.Now()
	for _, e := range entries {
		ev.EntryNos = append(ev.EntryNos, e.EntryNo)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: strconv.FormatInt(ev.AccountID, 10),
		Topic:      w.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := w.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
