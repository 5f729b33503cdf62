package game

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/domain"
)

// Store is the slice of the shared store the throttle needs.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Throttle is the per-user-per-room vote cooldown, separate from the general
// rate limiter. The window is claimed with set-if-absent so N simultaneous
// votes from the same user resolve to exactly one winner even across
// processes; there is no read-then-write to race.
type Throttle struct {
	store  Store
	window time.Duration
}

func NewThrottle(s Store, window time.Duration) *Throttle {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Throttle{store: s, window: window}
}

// Allow claims the throttle window. On store outage it allows the vote and
// logs, same fail-open policy as the rate limiter.
func (t *Throttle) Allow(ctx context.Context, room domain.RoomID, user domain.UserID) bool {
	if user == "" || room == "" {
		return true
	}
	key := fmt.Sprintf("vote:throttle:%s:%s", room, user)
	won, err := t.store.SetNX(ctx, key, "1", t.window)
	if err != nil {
		log.Warn().Err(err).Str("module", "game").Msg("store unavailable for vote throttle, allowing vote")
		return true
	}
	return won
}
