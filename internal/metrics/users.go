package metrics

import (
	"context"
	"sync"
	"time"
)

// UserTracker maintains the approximate active-user gauge: unique user IDs
// observed in the current window, flushed to the gauge and reset periodically.
type UserTracker struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	reset time.Duration
}

func NewUserTracker(reset time.Duration) *UserTracker {
	if reset <= 0 {
		reset = 10 * time.Minute
	}
	return &UserTracker{
		seen:  make(map[string]struct{}),
		reset: reset,
	}
}

func (t *UserTracker) Observe(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	t.seen[userID] = struct{}{}
	ActiveUsers.Set(float64(len(t.seen)))
	t.mu.Unlock()
}

// Run flushes and clears the set every reset interval until ctx is done.
func (t *UserTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.reset)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			ActiveUsers.Set(float64(len(t.seen)))
			t.seen = make(map[string]struct{})
			t.mu.Unlock()
		}
	}
}
