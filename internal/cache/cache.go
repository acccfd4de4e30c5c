// Package cache はTTL付きの文字列キャッシュを提供する。
// REDIS_URLが設定されていればRedisを、未設定ならプロセス内メモリを使用する。
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache はTTL付きキャッシュのインターフェース。
type Cache interface {
	// Get はキーに対応する値を返す。存在しない・期限切れの場合はfalseを返す。
	Get(ctx context.Context, key string) (string, bool, error)
	// Set は値をttlの間保持する。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete はキーを削除する。
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache はプロセス内のTTL付きキャッシュ。
// 単一プロセス構成やテストで使用する。
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFunc func() time.Time
}

// NewMemoryCache はMemoryCacheを生成する。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

// Get はキーに対応する値を返す。期限切れのエントリは削除する。
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !c.nowFunc().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Set は値をttlの間保持する。ttlが0以下の場合は保存しない。
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{value: value, expiresAt: c.nowFunc().Add(ttl)}
	return nil
}

// Delete はキーを削除する。
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Purge は期限切れのエントリを一括削除し、削除件数を返す。
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// RunJanitor はctxがキャンセルされるまでinterval毎にPurgeを実行する。
func (c *MemoryCache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}

// compile-time interface check
var _ Cache = (*MemoryCache)(nil)
