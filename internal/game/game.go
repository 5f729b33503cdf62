// Package game relays vote, state, start and end events. Votes are throttled
// and schema-checked; the other three are broadcast-only transitions whose
// authorization lives in the game-logic layer, not here.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

var (
	ErrThrottled     = errors.New("You are voting too quickly")
	ErrInvalidVote   = errors.New("Invalid vote for mode")
	ErrInvalidState  = errors.New("Invalid game state")
	ErrInvalidMode   = errors.New("Invalid game mode")
	ErrInvalidResult = errors.New("Invalid result format")
)

var validStates = map[string][]string{
	"WAITING":     {"STARTING"},
	"STARTING":    {"IN_PROGRESS", "WAITING"},
	"IN_PROGRESS": {"PAUSED", "FINISHED"},
	"PAUSED":      {"IN_PROGRESS", "FINISHED"},
	"FINISHED":    {}, // terminal
}

var validModes = map[string]struct{}{
	"classic": {}, "rapid": {}, "survival": {}, "multiplayer": {},
}

const (
	voteLogTTL  = 24 * time.Hour
	voteLogKeep = 1000
)

// VoteLogStore is the slice of the shared store the vote log needs.
type VoteLogStore interface {
	PushTrimmed(ctx context.Context, key, value string, keep int, ttl time.Duration) error
}

type Service struct {
	bus      *bus.Bus
	throttle *Throttle
	schemas  *SchemaRegistry
	voteLog  VoteLogStore
}

func NewService(b *bus.Bus, t *Throttle, r *SchemaRegistry, vl VoteLogStore) *Service {
	return &Service{bus: b, throttle: t, schemas: r, voteLog: vl}
}

// Vote applies the per-user cooldown, validates the payload against the
// mode's schema and broadcasts the update. voteType, when present, feeds the
// per-room vote log.
func (s *Service) Vote(ctx context.Context, voter domain.Identity, room domain.RoomID, mode, voteType string, vote json.RawMessage) error {
	if !s.throttle.Allow(ctx, room, voter.ID) {
		return ErrThrottled
	}
	if err := s.schemas.Get(mode).Validate(vote); err != nil {
		return ErrInvalidVote
	}
	s.bus.Broadcast(ctx, string(room), "game:vote-update", map[string]any{
		"user": voter,
		"vote": vote,
	})
	metrics.VotesTotal.Inc()
	s.logVote(ctx, voter.ID, room, voteType)
	return nil
}

type voteLogEntry struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
	Type   string `json:"type"`
	TS     int64  `json:"ts"`
}

// logVote appends an accepted vote to the room's bounded 24h log,
// best-effort. Entries without a vote type carry nothing worth recording.
func (s *Service) logVote(ctx context.Context, user domain.UserID, room domain.RoomID, voteType string) {
	if voteType == "" || user == "" {
		return
	}
	raw, err := json.Marshal(voteLogEntry{
		UserID: string(user),
		RoomID: string(room),
		Type:   voteType,
		TS:     time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf("vote:log:%s", room)
	if err := s.voteLog.PushTrimmed(ctx, key, string(raw), voteLogKeep, voteLogTTL); err != nil {
		log.Warn().Err(err).Str("module", "game").Str("room", string(room)).Msg("vote log append failed")
	}
}

// State relays a state transition after a cheap legality check against the
// static transition table. Whether the caller may transition at all is the
// game layer's problem.
func (s *Service) State(ctx context.Context, room domain.RoomID, state, currentState string) error {
	if _, known := validStates[state]; !known {
		return ErrInvalidState
	}
	if currentState != "" {
		allowed := false
		for _, t := range validStates[currentState] {
			if t == state {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("Invalid state transition from %s to %s", currentState, state)
		}
	}
	s.bus.Broadcast(ctx, string(room), "game:state-update", map[string]any{"state": state})
	return nil
}

func (s *Service) Start(ctx context.Context, starter domain.Identity, room domain.RoomID, mode string) error {
	if _, ok := validModes[mode]; !ok {
		return ErrInvalidMode
	}
	s.bus.Broadcast(ctx, string(room), "game:started", map[string]any{
		"mode":      mode,
		"startedBy": starter.ID,
	})
	return nil
}

func (s *Service) End(ctx context.Context, room domain.RoomID, result json.RawMessage) error {
	var v map[string]any
	if len(result) == 0 || json.Unmarshal(result, &v) != nil || v == nil {
		return ErrInvalidResult
	}
	s.bus.Broadcast(ctx, string(room), "game:ended", map[string]any{"result": result})
	return nil
}
