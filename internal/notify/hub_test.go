package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kidzo/gatesync/internal/models"
)

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	require.Equal(t, 2, h.ClientCount())

	h.BroadcastSnapshot(models.CounterSnapshot{TotalCheckIns: 3, TotalKids: 8, TotalCodes: 5})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		require.Equal(t, EventCounterSnapshot, ev.Type)
		require.Equal(t, int64(3), ev.Snapshot.TotalCheckIns)
	}
}

func TestHub_SlowSubscriberSkipsEvents(t *testing.T) {
	h := NewHub()
	h.buffer = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := h.Subscribe(ctx)
	h.BroadcastCheckIn(&models.CheckIn{TransactionID: "one"})
	h.BroadcastCheckIn(&models.CheckIn{TransactionID: "two"}) // dropped, buffer full

	ev := <-slow
	require.Equal(t, "one", ev.CheckIn.TransactionID)
	select {
	case ev := <-slow:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestHub_UnsubscribeOnContextDone(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.Subscribe(ctx)
	require.Equal(t, 1, h.ClientCount())

	cancel()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	require.False(t, open)

	// broadcasting with no subscribers is fine
	h.BroadcastSnapshot(models.CounterSnapshot{})
}

func TestHub_BroadcastDuringUnsubscribeDoesNotPanic(t *testing.T) {
	h := NewHub()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				h.BroadcastSnapshot(models.CounterSnapshot{TotalCheckIns: 1})
			}
		}
	}()

	// churn subscribers while the broadcaster runs; a send racing a close
	// would panic the broadcaster goroutine and fail the test
	for i := 0; i < 5000; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		ch := h.Subscribe(ctx)
		cancel()
		for range ch {
		}
	}
	close(done)
	wg.Wait()

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
