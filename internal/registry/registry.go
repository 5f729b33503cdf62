// Package registry tracks room membership. The authoritative cross-process
// state is a set of TTL'd keys in the shared store; what lives here is the
// local broadcast bookkeeping and the 0<->1 transitions that drive the
// active-rooms gauge. Rooms are created implicitly on first join and expire
// with their last key, there is no explicit deletion.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

// Store is the slice of the shared store the registry needs.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

var (
	ErrInvalidRoomType = errors.New("Invalid room type")
	ErrAlreadyJoined   = errors.New("Already joined")
	ErrJoinFailed      = errors.New("Failed to join room")
	ErrLeaveFailed     = errors.New("Failed to leave room")
)

const heartbeatTTL = 60 * time.Second

type Registry struct {
	mu     sync.Mutex
	counts map[domain.RoomID]int                 // local member count per room
	held   map[string]map[domain.RoomID]struct{} // sid -> rooms held

	bus   *bus.Bus
	store Store
}

func New(b *bus.Bus, s Store) *Registry {
	return &Registry{
		counts: make(map[domain.RoomID]int),
		held:   make(map[string]map[domain.RoomID]struct{}),
		bus:    b,
		store:  s,
	}
}

func presenceKey(room domain.RoomID, sid string) string {
	return fmt.Sprintf("room:%s:presence:%s", room, sid)
}

// Join adds the session to the room's broadcast group and refreshes the
// room's type key in the shared store. The presence key is written with
// set-if-absent so two near-simultaneous joins from the same session cannot
// both win, regardless of which process handles them.
func (r *Registry) Join(ctx context.Context, sess bus.Sender, user domain.Identity, roomID domain.RoomID, roomType domain.RoomType) error {
	ttl, ok := domain.RoomTypeTTL(roomType)
	if !ok {
		return ErrInvalidRoomType
	}
	if r.bus.Has(string(roomID), sess.SID()) {
		return ErrAlreadyJoined
	}

	won, err := r.store.SetNX(ctx, presenceKey(roomID, sess.SID()), "1", ttl)
	if err != nil {
		log.Error().Err(err).Str("module", "registry").Str("room", string(roomID)).Msg("presence write failed")
		return ErrJoinFailed
	}
	if !won {
		return ErrAlreadyJoined
	}
	if err := r.store.SetEx(ctx, fmt.Sprintf("room:%s:type", roomID), string(roomType), ttl); err != nil {
		log.Error().Err(err).Str("module", "registry").Str("room", string(roomID)).Msg("type key write failed")
		_ = r.store.Del(ctx, presenceKey(roomID, sess.SID()))
		return ErrJoinFailed
	}

	r.bus.Join(string(roomID), sess)
	r.track(sess.SID(), roomID)

	r.bus.Broadcast(ctx, string(roomID), "room:user-joined", map[string]any{
		"user":   user,
		"roomId": roomID,
	})
	log.Info().Str("module", "registry").Str("user", string(user.ID)).Str("room", string(roomID)).Msg("user joined room")
	return nil
}

// Leave removes the session from the room and broadcasts the departure.
func (r *Registry) Leave(ctx context.Context, sess bus.Sender, user domain.Identity, roomID domain.RoomID) error {
	r.bus.Leave(string(roomID), sess.SID())
	r.untrack(sess.SID(), roomID)

	if err := r.store.Del(ctx, presenceKey(roomID, sess.SID())); err != nil {
		log.Error().Err(err).Str("module", "registry").Str("room", string(roomID)).Msg("presence delete failed")
		return ErrLeaveFailed
	}

	r.bus.Broadcast(ctx, string(roomID), "room:user-left", map[string]any{
		"user":   user,
		"roomId": roomID,
	})
	log.Info().Str("module", "registry").Str("user", string(user.ID)).Str("room", string(roomID)).Msg("user left room")
	return nil
}

// Heartbeat refreshes the session's short-TTL presence marker, used to detect
// silent disconnects without relying on transport close events. Best-effort.
func (r *Registry) Heartbeat(ctx context.Context, sid string, roomID domain.RoomID) {
	key := fmt.Sprintf("room:%s:hb:%s", roomID, sid)
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := r.store.SetEx(ctx, key, now, heartbeatTTL); err != nil {
		log.Warn().Err(err).Str("module", "registry").Str("room", string(roomID)).Msg("heartbeat write failed")
	}
}

// DisconnectSweep emits exactly one user-left per room the session held and
// releases all local and shared bookkeeping for it.
func (r *Registry) DisconnectSweep(ctx context.Context, sess bus.Sender, user domain.Identity) {
	r.mu.Lock()
	rooms := make([]domain.RoomID, 0, len(r.held[sess.SID()]))
	for room := range r.held[sess.SID()] {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, roomID := range rooms {
		r.bus.Leave(string(roomID), sess.SID())
		r.untrack(sess.SID(), roomID)
		if err := r.store.Del(ctx, presenceKey(roomID, sess.SID())); err != nil {
			log.Warn().Err(err).Str("module", "registry").Str("room", string(roomID)).Msg("presence cleanup failed")
		}
		r.bus.Broadcast(ctx, string(roomID), "room:user-left", map[string]any{
			"user":   user,
			"roomId": roomID,
		})
		log.Info().Str("module", "registry").Str("user", string(user.ID)).Str("room", string(roomID)).Msg("user left room (disconnect)")
	}
}

// Rooms returns the rooms currently held by the session.
func (r *Registry) Rooms(sid string) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RoomID, 0, len(r.held[sid]))
	for room := range r.held[sid] {
		out = append(out, room)
	}
	return out
}

// Member reports whether the session currently holds membership in the room.
func (r *Registry) Member(sid string, roomID domain.RoomID) bool {
	return r.bus.Has(string(roomID), sid)
}

func (r *Registry) track(sid string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.held[sid]
	if !ok {
		rooms = make(map[domain.RoomID]struct{})
		r.held[sid] = rooms
	}
	if _, dup := rooms[roomID]; dup {
		return
	}
	rooms[roomID] = struct{}{}
	r.counts[roomID]++
	if r.counts[roomID] == 1 {
		metrics.ActiveRooms.Inc()
	}
}

func (r *Registry) untrack(sid string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms, ok := r.held[sid]
	if !ok {
		return
	}
	if _, member := rooms[roomID]; !member {
		return
	}
	delete(rooms, roomID)
	if len(rooms) == 0 {
		delete(r.held, sid)
	}
	r.counts[roomID]--
	if r.counts[roomID] <= 0 {
		delete(r.counts, roomID)
		metrics.ActiveRooms.Dec()
	}
}
