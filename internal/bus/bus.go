// Package bus is the event fan-out backbone. A broadcast to a room is
// delivered to locally connected members directly and republished on a shared
// Redis channel so every other process can deliver it to its own members.
// The sender's process never needs to hold the socket of a recipient.
package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/store"
)

const Channel = "quizsync:events"

// Sender is one locally connected session the bus can deliver to.
type Sender interface {
	SID() string
	Deliver(event string, payload json.RawMessage)
}

type envelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Origin  string          `json:"origin"`
	Exclude string          `json:"exclude,omitempty"`
}

type Bus struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Sender

	store  *store.Store
	origin string
}

func New(s *store.Store) *Bus {
	return &Bus{
		rooms:  make(map[string]map[string]Sender),
		store:  s,
		origin: uuid.NewString(),
	}
}

// Join adds a sender to a room's local broadcast group.
func (b *Bus) Join(room string, s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.rooms[room]
	if !ok {
		members = make(map[string]Sender)
		b.rooms[room] = members
	}
	members[s.SID()] = s
}

func (b *Bus) Leave(room, sid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if members, ok := b.rooms[room]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
}

func (b *Bus) Has(room, sid string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.rooms[room][sid]
	return ok
}

// LocalCount reports how many local senders are in the room.
func (b *Bus) LocalCount(room string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Broadcast fans an event out to every member of the room, cluster-wide.
func (b *Bus) Broadcast(ctx context.Context, room, event string, data any) {
	b.broadcast(ctx, room, event, "", data)
}

// BroadcastExcept behaves like Broadcast but skips the sender itself,
// cluster-wide.
func (b *Bus) BroadcastExcept(ctx context.Context, room, event, exclude string, data any) {
	b.broadcast(ctx, room, event, exclude, data)
}

func (b *Bus) broadcast(ctx context.Context, room, event, exclude string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("module", "bus").Str("event", event).Msg("marshal broadcast payload")
		return
	}
	b.deliverLocal(room, event, exclude, raw)

	env := envelope{Room: room, Event: event, Data: raw, Origin: b.origin, Exclude: exclude}
	msg, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "bus").Msg("marshal envelope")
		return
	}
	// Remote fan-out is best-effort: local members already got the event.
	if err := b.store.Publish(ctx, Channel, msg); err != nil {
		log.Warn().Err(err).Str("module", "bus").Msg("publish failed, delivering locally only")
	}
}

func (b *Bus) deliverLocal(room, event, exclude string, raw json.RawMessage) {
	b.mu.RLock()
	members := make([]Sender, 0, len(b.rooms[room]))
	for sid, s := range b.rooms[room] {
		if sid == exclude {
			continue
		}
		members = append(members, s)
	}
	b.mu.RUnlock()
	for _, s := range members {
		s.Deliver(event, raw)
	}
}

// Run consumes the shared channel until ctx is done, delivering events that
// originated on other processes to local members.
func (b *Bus) Run(ctx context.Context) {
	sub := b.store.Subscribe(ctx, Channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	log.Info().Str("module", "bus").Str("channel", Channel).Msg("fan-out subscriber started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn().Str("module", "bus").Msg("subscription closed")
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Error().Err(err).Str("module", "bus").Msg("bad envelope")
				continue
			}
			if env.Origin == b.origin {
				continue // already delivered locally at publish time
			}
			b.deliverLocal(env.Room, env.Event, env.Exclude, env.Data)
		}
	}
}
