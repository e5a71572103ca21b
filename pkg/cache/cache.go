package cache

import (
	"sync"
	"time"
)

// TTL 带过期时间的内存缓存
//
// 控制面的查询端点用它挡住重复读：条目写入后在 TTL 内直接命中，
// 过期后由后台清理 goroutine 回收。写路径可随时 Clear 使其失效。
type TTL[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	ttl   time.Duration
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL 创建缓存并启动清理循环
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	c := &TTL[K, V]{
		items: make(map[K]entry[V]),
		ttl:   ttl,
	}
	go c.cleanupLoop()
	return c
}

// Get 读取未过期的条目
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set 写入条目（覆盖旧值，重置 TTL）
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Clear 清空全部条目（写路径失效用）
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
}

// Size 当前条目数（含未清理的过期条目）
func (c *TTL[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *TTL[K, V]) cleanupLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.items {
			if now.After(e.expiresAt) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
