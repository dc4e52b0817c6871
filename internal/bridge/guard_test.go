package bridge

import (
	"context"
	"testing"
	"time"

	"chatfuel-dify-bridge/internal/common/config"
	"chatfuel-dify-bridge/internal/common/database"
	"chatfuel-dify-bridge/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*TurnGuard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	return NewTurnGuard(redisClient, 150*time.Second, logger.NewTestLogger(t)), mr
}

func TestTurnGuard_FirstTurnNoOverlap(t *testing.T) {
	guard, _ := newTestGuard(t)

	overlap := guard.Begin(context.Background(), "user-1")
	assert.False(t, overlap)
}

func TestTurnGuard_SecondTurnOverlaps(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	assert.False(t, guard.Begin(ctx, "user-1"))
	assert.True(t, guard.Begin(ctx, "user-1"))
}

func TestTurnGuard_DistinctUsersIndependent(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	assert.False(t, guard.Begin(ctx, "user-1"))
	assert.False(t, guard.Begin(ctx, "user-2"))
}

func TestTurnGuard_EndClearsMarker(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	assert.False(t, guard.Begin(ctx, "user-1"))
	guard.End(ctx, "user-1")
	assert.False(t, guard.Begin(ctx, "user-1"))
}

func TestTurnGuard_MarkerExpires(t *testing.T) {
	guard, mr := newTestGuard(t)
	ctx := context.Background()

	assert.False(t, guard.Begin(ctx, "user-1"))
	mr.FastForward(151 * time.Second)
	assert.False(t, guard.Begin(ctx, "user-1"))
}

func TestTurnGuard_NilGuardDisabled(t *testing.T) {
	var guard *TurnGuard
	ctx := context.Background()

	assert.False(t, guard.Begin(ctx, "user-1"))
	guard.End(ctx, "user-1") // must not panic
}

func TestTurnGuard_StoreFailureTreatedAsNoOverlap(t *testing.T) {
	guard, mr := newTestGuard(t)
	mr.Close()

	overlap := guard.Begin(context.Background(), "user-1")
	assert.False(t, overlap)
}
