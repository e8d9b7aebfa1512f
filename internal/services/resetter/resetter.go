package resetter

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// CounterResetter zeroes the live admission counters and announces the fresh
// snapshot to connected terminals.
type CounterResetter interface {
	ResetCounters(ctx context.Context) error
}

// Resetter fires counter resets at fixed wall-clock boundaries, typically
// midnight plus the venue's opening time. Times are local to the configured
// location so the daily boundary follows DST.
type Resetter struct {
	svc   CounterResetter
	times []boundary
	loc   *time.Location

	now       func() time.Time
	triggerCh chan struct{}
}

type boundary struct {
	hour, minute int
}

// New parses reset times in "HH:MM" form. At least one time is required.
func New(svc CounterResetter, resetTimes []string, loc *time.Location) (*Resetter, error) {
	if len(resetTimes) == 0 {
		return nil, errors.New("at least one reset time is required")
	}
	if loc == nil {
		loc = time.Local
	}
	bs := make([]boundary, 0, len(resetTimes))
	for _, raw := range resetTimes {
		t, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse reset time %q", raw)
		}
		bs = append(bs, boundary{hour: t.Hour(), minute: t.Minute()})
	}
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].hour != bs[j].hour {
			return bs[i].hour < bs[j].hour
		}
		return bs[i].minute < bs[j].minute
	})
	return &Resetter{
		svc:       svc,
		times:     bs,
		loc:       loc,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}, nil
}

// Trigger forces an immediate reset cycle (best-effort, non-blocking).
func (r *Resetter) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Next returns the first boundary strictly after now.
func (r *Resetter) Next(now time.Time) time.Time {
	now = now.In(r.loc)
	for _, b := range r.times {
		at := time.Date(now.Year(), now.Month(), now.Day(), b.hour, b.minute, 0, 0, r.loc)
		if at.After(now) {
			return at
		}
	}
	// all of today's boundaries passed, roll to the first one tomorrow
	first := r.times[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.hour, first.minute, 0, 0, r.loc)
}

func (r *Resetter) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := r.Next(r.now())
		timer.Reset(next.Sub(r.now()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			r.runOnce(ctx, next)
		case <-r.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			r.runOnce(ctx, r.now())
		}
	}
}

func (r *Resetter) runOnce(ctx context.Context, at time.Time) {
	if err := r.svc.ResetCounters(ctx); err != nil {
		slog.Error("reset counters", "at", at.Format(time.RFC3339), "error", err.Error())
		return
	}
	slog.Info("counters reset", "at", at.Format(time.RFC3339))
}
