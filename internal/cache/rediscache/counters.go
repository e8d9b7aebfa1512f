package rediscache

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/kidzo/gatesync/internal/models"
)

const (
	keyTotalCheckIns = "totalCheckIns"
	keyTotalKids     = "totalKids"
	keyTotalCodes    = "totalCodes"
)

// Counters is the running-totals ledger for the active counting period.
// It is the only component that writes the counter keys.
type Counters struct {
	c *redis.Client
}

func NewCounters(addr string) *Counters {
	return &Counters{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Increment advances all three totals in one MULTI/EXEC batch, so a
// concurrent Read never observes a partially applied increment.
func (c *Counters) Increment(ctx context.Context, kids, codes int64) (models.CounterSnapshot, error) {
	pipe := c.c.TxPipeline()
	checkIns := pipe.Incr(ctx, keyTotalCheckIns)
	totalKids := pipe.IncrBy(ctx, keyTotalKids, kids)
	totalCodes := pipe.IncrBy(ctx, keyTotalCodes, codes)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.CounterSnapshot{}, errors.Wrap(err, "redis increment counters")
	}
	return models.CounterSnapshot{
		TotalCheckIns: checkIns.Val(),
		TotalKids:     totalKids.Val(),
		TotalCodes:    totalCodes.Val(),
	}, nil
}

// Reset zeroes all three totals atomically. Calling it again is a no-op in
// effect.
func (c *Counters) Reset(ctx context.Context) error {
	pipe := c.c.TxPipeline()
	pipe.Set(ctx, keyTotalCheckIns, 0, 0)
	pipe.Set(ctx, keyTotalKids, 0, 0)
	pipe.Set(ctx, keyTotalCodes, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis reset counters")
	}
	return nil
}

// Read returns the current snapshot. Keys that were never written count as 0.
func (c *Counters) Read(ctx context.Context) (models.CounterSnapshot, error) {
	vals, err := c.c.MGet(ctx, keyTotalCheckIns, keyTotalKids, keyTotalCodes).Result()
	if err != nil {
		return models.CounterSnapshot{}, errors.Wrap(err, "redis read counters")
	}
	return models.CounterSnapshot{
		TotalCheckIns: toInt64(vals[0]),
		TotalKids:     toInt64(vals[1]),
		TotalCodes:    toInt64(vals[2]),
	}, nil
}

func toInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
