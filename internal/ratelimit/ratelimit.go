// Package ratelimit implements the per-identity sliding-window limiter applied
// to every inbound event before dispatch. Counters live in the shared store so
// the limit holds across processes; on store outage the limiter fails open and
// logs, trading strict enforcement for availability.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	BucketSize = 20              // max events per window
	Window     = 1 * time.Second // sliding window size

	burstLimit  = 30               // max events per burst window
	burstWindow = 10 * time.Second //
	banDuration = 5 * time.Minute
	// Repeated window violations within an hour escalate to a longer ban.
	banThreshold = 100
)

// Store is the slice of the shared store the limiter needs.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
}

type Limiter struct {
	store Store
}

func New(s Store) *Limiter {
	return &Limiter{store: s}
}

// Allow checks and records one event for id. The returned reason is a short,
// user-facing string and is empty whenever ok is true.
func (l *Limiter) Allow(ctx context.Context, id string) (ok bool, reason string) {
	banKey := fmt.Sprintf("ban:%s", id)

	banned, err := l.store.Exists(ctx, banKey)
	if err != nil {
		return l.failOpen(err)
	}
	if banned {
		return false, "You have been temporarily banned due to rate limit violations"
	}

	count, err := l.store.IncrWindow(ctx, fmt.Sprintf("ratelimit:%s", id), Window)
	if err != nil {
		return l.failOpen(err)
	}
	burst, err := l.store.IncrWindow(ctx, fmt.Sprintf("burst:%s", id), burstWindow)
	if err != nil {
		return l.failOpen(err)
	}

	if burst > burstLimit {
		if err := l.store.SetEx(ctx, banKey, "1", banDuration); err != nil {
			log.Warn().Err(err).Str("module", "ratelimit").Msg("failed to apply ban")
		}
		return false, "Rate limit exceeded - temporary ban applied"
	}

	if count > BucketSize {
		violations, err := l.store.IncrWindow(ctx, fmt.Sprintf("violations:%s", id), time.Hour)
		if err == nil && violations >= banThreshold {
			if err := l.store.SetEx(ctx, banKey, "1", 2*banDuration); err != nil {
				log.Warn().Err(err).Str("module", "ratelimit").Msg("failed to apply ban")
			}
		}
		return false, "Rate limit exceeded"
	}
	return true, ""
}

func (l *Limiter) failOpen(err error) (bool, string) {
	log.Warn().Err(err).Str("module", "ratelimit").Msg("store unavailable, failing open")
	return true, ""
}
