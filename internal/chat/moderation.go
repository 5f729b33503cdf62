package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/domain"
)

// DefaultMuteTTL bounds a mute that was issued without an explicit duration.
const DefaultMuteTTL = 10 * time.Minute

// ModerationStore is the slice of the shared store moderation needs.
type ModerationStore interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Moderation keeps mute and block state in the shared store so a mute issued
// on one process holds on every other. Blocks are directional and mirrored
// into a reverse set so the send path can answer "is the sender blocked by
// anyone" with a single lookup instead of scanning every block list.
type Moderation struct {
	store ModerationStore
}

func NewModeration(s ModerationStore) *Moderation {
	return &Moderation{store: s}
}

func muteKey(room domain.RoomID, user domain.UserID) string {
	return fmt.Sprintf("chat:mute:%s:%s", room, user)
}

func blockKey(user domain.UserID) string {
	return fmt.Sprintf("chat:block:%s", user)
}

func blockedByKey(user domain.UserID) string {
	return fmt.Sprintf("chat:blockedby:%s", user)
}

func (m *Moderation) Mute(ctx context.Context, room domain.RoomID, user domain.UserID, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultMuteTTL
	}
	return m.store.SetEx(ctx, muteKey(room, user), "1", ttl)
}

func (m *Moderation) Unmute(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	return m.store.Del(ctx, muteKey(room, user))
}

// Block records that blocker does not want to hear from target. Directional.
func (m *Moderation) Block(ctx context.Context, blocker, target domain.UserID) error {
	if err := m.store.SAdd(ctx, blockKey(blocker), string(target)); err != nil {
		return err
	}
	return m.store.SAdd(ctx, blockedByKey(target), string(blocker))
}

func (m *Moderation) Unblock(ctx context.Context, blocker, target domain.UserID) error {
	if err := m.store.SRem(ctx, blockKey(blocker), string(target)); err != nil {
		return err
	}
	return m.store.SRem(ctx, blockedByKey(target), string(blocker))
}

// Restricted reports whether the sender is muted in the room or blocked by
// anyone. The any-blocker check is deliberately platform-wide, matching the
// moderation policy in effect today; see DESIGN.md for the scoping question.
// On store outage the check fails open: availability over strict enforcement.
func (m *Moderation) Restricted(ctx context.Context, room domain.RoomID, sender domain.UserID) bool {
	muted, err := m.store.Exists(ctx, muteKey(room, sender))
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("mute check unavailable, failing open")
		return false
	}
	if muted {
		return true
	}
	blocked, err := m.store.Exists(ctx, blockedByKey(sender))
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("block check unavailable, failing open")
		return false
	}
	return blocked
}
