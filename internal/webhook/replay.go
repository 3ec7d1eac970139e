package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultReplayTTL covers Svix's full retry schedule.
const DefaultReplayTTL = 72 * time.Hour

const replayKeyPrefix = "hypeshelf:webhook:"

// ReplayGuard remembers delivered message ids so a redelivered event is
// acknowledged without touching the store again. A nil client disables it;
// identity sync is idempotent either way.
type ReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReplayGuard(client *redis.Client, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayGuard{client: client, ttl: ttl}
}

// FirstDelivery atomically claims msgID and reports whether this is the
// first time it has been seen.
func (g *ReplayGuard) FirstDelivery(ctx context.Context, msgID string) (bool, error) {
	if g == nil || g.client == nil || msgID == "" {
		return true, nil
	}
	return g.client.SetNX(ctx, replayKeyPrefix+msgID, "1", g.ttl).Result()
}

// Release drops the claim on msgID so a failed delivery can be retried.
func (g *ReplayGuard) Release(ctx context.Context, msgID string) error {
	if g == nil || g.client == nil || msgID == "" {
		return nil
	}
	return g.client.Del(ctx, replayKeyPrefix+msgID).Err()
}
