package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kidzo/gatesync/internal/models"
)

func TestCounters_IncrementAndRead(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewCounters(mr.Addr())
	ctx := context.Background()

	// absent keys read as zero
	snap, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, models.CounterSnapshot{}, snap)

	snap, err = c.Increment(ctx, 2, 3)
	require.NoError(t, err)
	require.Equal(t, models.CounterSnapshot{TotalCheckIns: 1, TotalKids: 2, TotalCodes: 3}, snap)

	_, err = c.Increment(ctx, 5, 0)
	require.NoError(t, err)
	snap, err = c.Increment(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, models.CounterSnapshot{TotalCheckIns: 3, TotalKids: 8, TotalCodes: 5}, snap)

	got, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestCounters_ResetIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewCounters(mr.Addr())
	ctx := context.Background()

	_, err := c.Increment(ctx, 4, 1)
	require.NoError(t, err)

	require.NoError(t, c.Reset(ctx))
	require.NoError(t, c.Reset(ctx))

	snap, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, models.CounterSnapshot{}, snap)

	// a subsequent increment starts from zero
	snap, err = c.Increment(ctx, 2, 2)
	require.NoError(t, err)
	require.Equal(t, models.CounterSnapshot{TotalCheckIns: 1, TotalKids: 2, TotalCodes: 2}, snap)
}

func TestCounters_ErrorWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewCounters(mr.Addr())
	mr.Close()

	_, err := c.Increment(context.Background(), 1, 1)
	require.Error(t, err)
	require.Error(t, c.Reset(context.Background()))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:gate-01", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:gate-01", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:gate-01", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}
