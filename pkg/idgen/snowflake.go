package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 【为什么需要分布式ID？】
//
// 流水号、充值单号、支付单号要求：
//   1. 全局唯一 - 不能重复
//   2. 趋势递增 - 便于数据库索引
//   3. 高性能 - 支持高并发生成
//   4. 信息隐藏 - 不暴露业务量
//
// 【雪花算法结构】64位
//
//   0 - 41位时间戳 - 10位机器ID - 12位序列号
//   |   |            |            |
//   |   |            |            +-- 同一毫秒内的序列号（0-4095）
//   |   |            +-- 机器ID（0-1023）
//   |   +-- 毫秒级时间戳（可用约69年）
//   +-- 符号位，始终为0
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 起始时间戳（2024-01-01 00:00:00 UTC）
	workerIDBits   = 10                   // 机器ID位数
	sequenceBits   = 12                   // 序列号位数
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Snowflake 雪花算法ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	initMu           sync.Mutex
)

// NewSnowflake 创建独立的生成器
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 初始化默认ID生成器（多实例部署时每个实例的 workerID 必须不同）
func Init(workerID int64) error {
	s, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	initMu.Lock()
	defaultGenerator = s
	initMu.Unlock()
	return nil
}

// NextID 生成下一个ID
func NextID() int64 {
	initMu.Lock()
	if defaultGenerator == nil {
		defaultGenerator = &Snowflake{workerID: 1}
	}
	g := defaultGenerator
	initMu.Unlock()
	return g.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// 时钟回拨时沿用上一个时间戳，靠序列号保证唯一
		now = s.timestamp
	}

	if now == s.timestamp {
		// 同一毫秒内，序列号递增
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// 单号格式：前缀 + 年月日 + 完整雪花ID
// 例如：TXN20250115_123456789012345678
func generateNo(prefix string) string {
	return fmt.Sprintf("%s%s_%d", prefix, time.Now().Format("20060102"), NextID())
}

// GenerateEntryNo 生成账本流水号
func GenerateEntryNo() string { return generateNo("TXN") }

// GenerateTopupNo 生成充值单号
func GenerateTopupNo() string { return generateNo("TOP") }

// GeneratePaymentNo 生成支付单号
func GeneratePaymentNo() string { return generateNo("PAY") }

// GenerateRefundNo 生成退款单号
func GenerateRefundNo() string { return generateNo("REF") }

// GenerateJobNo 生成打印任务号
func GenerateJobNo() string { return generateNo("JOB") }
