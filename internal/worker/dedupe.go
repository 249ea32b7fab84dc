package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"imagebot/internal/infra"
)

// Dedupe records completed deliveries in Redis so duplicate queue deliveries
// of an already-finished job are skipped without touching the stores. It is
// strictly best-effort: handlers stay idempotent on their own, and a Redis
// outage only costs the fast path.
type Dedupe struct {
	client *redis.Client
	ttl    time.Duration
	log    infra.Logger
}

// NewDedupe builds the guard. A nil client disables it.
func NewDedupe(client *redis.Client, ttl time.Duration, log infra.Logger) *Dedupe {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedupe{client: client, ttl: ttl, log: log}
}

// Done reports whether key was already marked as completed.
func (d *Dedupe) Done(ctx context.Context, key string) bool {
	if d == nil || d.client == nil {
		return false
	}
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("dedupe lookup failed")
		return false
	}
	return n > 0
}

// MarkDone records a completed delivery.
func (d *Dedupe) MarkDone(ctx context.Context, key string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.SetNX(ctx, key, 1, d.ttl).Err(); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("dedupe mark failed")
	}
}
