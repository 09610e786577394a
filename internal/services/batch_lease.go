package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	batchLeaseKey = "janus:batch:lease"
	batchLeaseTTL = 1 * time.Hour
)

// BatchLease grants at most one batch run at a time. Acquire returns false
// when another run holds the lease.
type BatchLease interface {
	Acquire(ctx context.Context, runID string) (bool, error)
	Release(ctx context.Context, runID string) error
}

// LocalLease serializes runs within this process
type LocalLease struct {
	mu     sync.Mutex
	holder string
}

// NewLocalLease creates an in-process lease
func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

func (l *LocalLease) Acquire(ctx context.Context, runID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder != "" {
		return false, nil
	}
	l.holder = runID
	return true, nil
}

func (l *LocalLease) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.holder == runID {
		l.holder = ""
	}
	return nil
}

// RedisLease serializes runs across every process sharing a Redis instance.
// The key expires after ttl so a crashed holder cannot block runs forever.
type RedisLease struct {
	redis *RedisService
	key   string
	ttl   time.Duration
}

// NewRedisLease creates a lease stored under the shared batch key
func NewRedisLease(redis *RedisService) *RedisLease {
	return &RedisLease{redis: redis, key: batchLeaseKey, ttl: batchLeaseTTL}
}

func (l *RedisLease) Acquire(ctx context.Context, runID string) (bool, error) {
	ok, err := l.redis.AcquireLock(ctx, l.key, runID, l.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire batch lease: %w", err)
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context, runID string) error {
	if _, err := l.redis.ReleaseLock(ctx, l.key, runID); err != nil {
		return fmt.Errorf("failed to release batch lease: %w", err)
	}
	return nil
}
