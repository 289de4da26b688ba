package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vcscsvcscs/adherence-engine/internal/clock"
)

// Marker records that a reminder was dispatched. Claim returns true only for the first
// caller of a key until ttl expires.
type Marker interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryMarker keeps claims in process memory
type MemoryMarker struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]time.Time
}

const pruneThreshold = 10000

func NewMemoryMarker(clk clock.Clock) *MemoryMarker {
	return &MemoryMarker{clock: clk, entries: make(map[string]time.Time)}
}

func (m *MemoryMarker) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false, nil
	}

	if len(m.entries) >= pruneThreshold {
		for k, exp := range m.entries {
			if !now.Before(exp) {
				delete(m.entries, k)
			}
		}
	}

	m.entries[key] = now.Add(ttl)
	return true, nil
}

// RedisMarker shares claims between scheduler instances through SETNX
type RedisMarker struct {
	client redis.Cmdable
	prefix string
}

func NewRedisMarker(client redis.Cmdable, prefix string) *RedisMarker {
	if prefix == "" {
		prefix = "adherence:reminder:"
	}
	return &RedisMarker{client: client, prefix: prefix}
}

func (m *RedisMarker) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim dispatch marker: %w", err)
	}
	return ok, nil
}

var (
	_ Marker = (*MemoryMarker)(nil)
	_ Marker = (*RedisMarker)(nil)
)
