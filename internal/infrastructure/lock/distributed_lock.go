package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：用户A同时发起两笔提现请求（比如网络抖动导致重复提交）
//
// 余额的正确性由数据库的条件更新保证（见 WalletRepository），
// 这里的锁只用来挡掉同一用户的并发重复提交，减少无谓的乐观锁冲突和服务商外呼。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// Locker 锁的抽象，服务层只依赖这个接口，测试时换成 NoopFactory
type Locker interface {
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// Factory 按业务维度创建锁
type Factory interface {
	// WalletLock 按用户维度的钱包锁，token 用请求标识便于追踪锁的持有者
	WalletLock(userID, token string) Locker
}

// DistributedLock 基于 Redis 的分布式锁
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
	// SET key value NX EX timeout
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
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
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】使用 Lua 脚本保证"检查+删除"操作的原子性
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉！
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 锁工厂
// ============================================================================

// RedisFactory 生产环境使用的锁工厂
type RedisFactory struct {
	client *redis.Client
}

func NewRedisFactory(client *redis.Client) *RedisFactory {
	return &RedisFactory{client: client}
}

// WalletLock 按用户维度加锁
//
// 【设计思考】为什么按用户维度？
// 不同用户之间没有资金交集，可以完全并发；
// 同一用户的出金类操作串行化，正是我们想要的。
func (f *RedisFactory) WalletLock(userID, token string) Locker {
	key := fmt.Sprintf("wallet:lock:user:%s", userID)
	return NewDistributedLock(f.client, key, token, 30*time.Second)
}

// NoopFactory 测试用的空锁工厂，所有加锁立即成功
type NoopFactory struct{}

type noopLock struct{}

func (noopLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return nil
}

func (noopLock) Unlock(ctx context.Context) error {
	return nil
}

func (NoopFactory) WalletLock(userID, token string) Locker {
	return noopLock{}
}
