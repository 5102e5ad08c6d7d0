package billing

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper suppresses replayed confirmation events. It is a fast-path
// guard in front of the durable session-store idempotency check, not a
// substitute for it: dedupe failures are tolerated, the conditional
// status transition is not. Seen only reads; a key is marked after the
// outcome it guards has been applied, so a failed attempt never
// poisons the retry.
type Deduper interface {
	// Seen reports whether the key has been marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key as processed.
	Mark(ctx context.Context, key string) error
}

// RedisDeduper marks events under a TTL. Replays arriving after the
// TTL fall through to the session store, which still rejects them.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, "billing:confirm:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	return d.client.Set(ctx, "billing:confirm:"+key, 1, d.ttl).Err()
}

// MemoryDeduper is an in-process Deduper for tests and single-node
// deployments without Redis.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Seen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.seen[key]
	return ok, nil
}

func (d *MemoryDeduper) Mark(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[key] = struct{}{}
	return nil
}
