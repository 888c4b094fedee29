package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gridbase/gridbase/pkg/apperror"
	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/logger"
)

const (
	redisEntryPrefix = "gridbase:cache:entry:"
	redisTablePrefix = "gridbase:cache:table:"
	redisGenPrefix   = "gridbase:cache:gen:"
)

// Redis is a Cache backed by a shared Redis instance, for deployments
// running more than one engine process. Entries expire via native TTL;
// a per-table set tracks keys so invalidation stays a two-command
// operation. Backend failures surface as cache faults.
type Redis struct {
	rdb    *database.Redis
	ttl    time.Duration
	logger *logger.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// NewRedis creates a Redis-backed cache. A non-positive ttl falls back
// to the default.
func NewRedis(rdb *database.Redis, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: log}
}

func (r *Redis) Get(ctx context.Context, tableID, key string) (*Entry, bool, error) {
	raw, err := r.rdb.Client().Get(ctx, redisEntryPrefix+tableID+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		r.misses.Add(1)
		return nil, false, apperror.CacheFault(fmt.Errorf("redis get: %w", err))
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		r.misses.Add(1)
		return nil, false, apperror.CacheFault(fmt.Errorf("redis entry decode: %w", err))
	}

	r.hits.Add(1)
	return &entry, true, nil
}

func (r *Redis) Generation(ctx context.Context, tableID string) (int64, error) {
	gen, err := r.rdb.Client().Get(ctx, redisGenPrefix+tableID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, apperror.CacheFault(fmt.Errorf("redis generation: %w", err))
	}
	return gen, nil
}

func (r *Redis) Set(ctx context.Context, tableID, key string, entry *Entry, generation int64) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return apperror.CacheFault(fmt.Errorf("redis entry encode: %w", err))
	}

	// Optimistic transaction on the generation key: if an invalidation
	// advances it between the check and EXEC, the store is dropped.
	genKey := redisGenPrefix + tableID
	err = r.rdb.Client().Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisEntryPrefix+tableID+":"+key, raw, r.ttl)
			pipe.SAdd(ctx, redisTablePrefix+tableID, key)
			// The key set outlives its entries slightly so it can expire too.
			pipe.Expire(ctx, redisTablePrefix+tableID, r.ttl*2)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return apperror.CacheFault(fmt.Errorf("redis set: %w", err))
	}

	return nil
}

func (r *Redis) InvalidateTable(ctx context.Context, tableID string) error {
	setKey := redisTablePrefix + tableID

	// Advance the generation first so an in-flight Set that read the
	// old value can no longer land after this invalidation.
	if err := r.rdb.Client().Incr(ctx, redisGenPrefix+tableID).Err(); err != nil {
		return apperror.CacheFault(fmt.Errorf("redis invalidate: %w", err))
	}

	keys, err := r.rdb.Client().SMembers(ctx, setKey).Result()
	if err != nil {
		return apperror.CacheFault(fmt.Errorf("redis invalidate: %w", err))
	}
	if len(keys) == 0 {
		return nil
	}

	del := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		del = append(del, redisEntryPrefix+tableID+":"+key)
	}
	del = append(del, setKey)

	if err := r.rdb.Client().Del(ctx, del...).Err(); err != nil {
		return apperror.CacheFault(fmt.Errorf("redis invalidate: %w", err))
	}
	r.invalidations.Add(int64(len(keys)))

	if r.logger != nil {
		r.logger.Debugf("Invalidated %d cached results for table %s", len(keys), tableID)
	}

	return nil
}

func (r *Redis) Stats() Stats {
	return Stats{
		Hits:          r.hits.Load(),
		Misses:        r.misses.Load(),
		Invalidations: r.invalidations.Load(),
	}
}

func (r *Redis) Healthy(ctx context.Context) error {
	if err := r.rdb.Ping(ctx); err != nil {
		return apperror.CacheFault(fmt.Errorf("redis ping: %w", err))
	}
	return nil
}

// Shutdown is a no-op; the shared Redis connection is owned by the
// caller.
func (r *Redis) Shutdown() {}
