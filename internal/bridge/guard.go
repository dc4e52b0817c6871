package bridge

import (
	"context"
	"time"

	"chatfuel-dify-bridge/internal/common/database"
	"chatfuel-dify-bridge/internal/common/logger"
)

const guardKeyPrefix = "bridge:turn:inflight:"

// TurnGuard tracks an in-flight marker per user in Redis so overlapping
// turns can be observed. Overlap is not blocked: segment ordering is only
// guaranteed within a single turn, and the caller is expected to avoid
// issuing concurrent turns for one user. The guard makes violations of that
// expectation visible instead of silent.
//
// A nil guard, or one built without a Redis client, disables tracking.
type TurnGuard struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewTurnGuard(redis *database.RedisClient, ttl time.Duration, log logger.Logger) *TurnGuard {
	return &TurnGuard{
		redis:  redis,
		ttl:    ttl,
		logger: log,
	}
}

// Begin marks the user's turn as in flight and reports whether another turn
// was already running. Guard store failures are logged and treated as no
// overlap; the pipeline never depends on Redis being up.
func (g *TurnGuard) Begin(ctx context.Context, userID string) bool {
	if g == nil || g.redis == nil {
		return false
	}

	set, err := g.redis.SetNX(ctx, guardKeyPrefix+userID, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		g.logger.Warn("Turn guard unavailable", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return false
	}

	return !set
}

// End clears the in-flight marker. Safe to call when Begin reported overlap;
// the marker expires on its own if the delete is lost.
func (g *TurnGuard) End(ctx context.Context, userID string) {
	if g == nil || g.redis == nil {
		return
	}

	if err := g.redis.Del(ctx, guardKeyPrefix+userID); err != nil {
		g.logger.Warn("Failed to clear turn guard marker", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}
