package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/observability"
	"github.com/stagehubhq/stagehub/internal/utils"
)

// EventsCache is a redis cache-aside layer for resolved event records.
// Cache failures are treated as misses: the caller falls through to the
// database and the error is only logged.
type EventsCache struct {
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
	prom *observability.Prom
}

func NewEventsCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger, prom *observability.Prom) *EventsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &EventsCache{
		rdb:  rdb,
		ttl:  ttl,
		log:  log,
		prom: prom,
	}
}

// GetBatch returns the cached events found for ids plus the ids that
// still need a database read, preserving the input order for misses.
func (c *EventsCache) GetBatch(ctx context.Context, ids []string, site string) (map[string]event.Event, []string) {
	found := make(map[string]event.Event, len(ids))

	if c == nil || c.rdb == nil || len(ids) == 0 {
		return found, ids
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = utils.EventCacheKey(id)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()

	if err != nil {
		c.log.WarnContext(ctx, "event cache read failed", "err", err)
		return found, ids
	}

	missing := make([]string, 0, len(ids))

	for i, v := range vals {
		raw, ok := v.(string)

		if !ok || raw == "" {
			missing = append(missing, ids[i])
			continue
		}

		var e event.Event

		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			missing = append(missing, ids[i])
			continue
		}

		found[ids[i]] = e
	}

	if c.prom != nil {
		c.prom.CacheHits.WithLabelValues(site).Add(float64(len(found)))
		c.prom.CacheMisses.WithLabelValues(site).Add(float64(len(missing)))
	}

	return found, missing
}

// SetBatch writes events back after a database read. Best effort.
func (c *EventsCache) SetBatch(ctx context.Context, events []event.Event) {
	if c == nil || c.rdb == nil || len(events) == 0 {
		return
	}

	pipe := c.rdb.Pipeline()

	for _, e := range events {
		b, err := json.Marshal(e)

		if err != nil {
			continue
		}

		pipe.Set(ctx, utils.EventCacheKey(e.ID), b, c.ttl)
	}

	_, err := pipe.Exec(ctx)

	if err != nil {
		c.log.WarnContext(ctx, "event cache write failed", "err", err)
	}
}

// Invalidate drops a single event, called after catalog writes.
func (c *EventsCache) Invalidate(ctx context.Context, id string) {
	if c == nil || c.rdb == nil {
		return
	}

	err := c.rdb.Del(ctx, utils.EventCacheKey(id)).Err()

	if err != nil {
		c.log.WarnContext(ctx, "event cache invalidate failed", "err", err, "event_id", id)
	}
}
