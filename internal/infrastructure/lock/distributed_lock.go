package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要账户锁？】
//
// 场景：同一账户的两个浏览器标签页同时确认支付
//
// 如果没有锁：
//   请求1: 汇总余额=100 -> 判断够扣80 -> 追加 -80 流水
//   请求2: 汇总余额=100 -> 判断够扣80 -> 追加 -80 流水   余额变成 -60！
//
// 加了账户锁：
//   请求1: 获取锁 -> 汇总余额=100 -> 追加 -80 -> 提交 -> 释放锁
//   请求2: 等待... -> 获取锁 -> 汇总余额=20 -> 余额不足，拒绝
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，只删除自己持有的锁
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕调用 Unlock
//	不校验 value 的话 A 会把 B 的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// ============================================================================
// Locker 抽象
// ============================================================================

// Unlocker 释放一次成功获取的锁
type Unlocker func(ctx context.Context) error

// Locker 按 key 互斥，业务层只依赖这个接口
type Locker interface {
	Obtain(ctx context.Context, key string) (Unlocker, error)
}

// RedisLocker 基于 DistributedLock 的多进程实现
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// Obtain 每次加锁生成新的持有者标识
func (r *RedisLocker) Obtain(ctx context.Context, key string) (Unlocker, error) {
	l := NewDistributedLock(r.client, key, uuid.NewString(), r.ttl)
	if err := l.Lock(ctx, r.retryInterval, r.maxRetries); err != nil {
		return nil, err
	}
	return l.Unlock, nil
}

// ============================================================================
// 锁的 key
// ============================================================================

// AccountKey 钱包账户锁
//
// 【为什么按账户维度加锁？】
// 全局锁并发度太低；按账户加锁时不同账户可以并发记账，
// 同一账户的"读余额 -> 判断 -> 追加流水"被串行化，这正是我们想要的
func AccountKey(accountID int64) string {
	return fmt.Sprintf("wallet:lock:account:%d", accountID)
}

// JobRefundKey 单个打印任务的退款锁
func JobRefundKey(jobID int64) string {
	return fmt.Sprintf("refund:lock:job:%d", jobID)
}

// CatalogKey 价格目录同一条目的调价锁
func CatalogKey(parts ...string) string {
	key := "pricing:lock"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
