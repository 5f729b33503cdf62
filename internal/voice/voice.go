// Package voice coordinates per-room voice transport. Strategy selection is
// a single decision function over provider credentials and the override flag;
// each strategy carries the same capability set, so handlers never branch on
// mode themselves. Voice is best-effort throughout: a failure degrades the
// one call it happened in, never the connection.
package voice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/domain"
)

type Mode string

const (
	ModeLiveKit Mode = "livekit"
	ModeWebRTC  Mode = "webrtc"
)

// JoinResult is handed back to the joining client; Token and URL are only set
// in managed mode.
type JoinResult struct {
	Mode  Mode   `json:"mode"`
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
}

func fallbackRoom(room domain.RoomID) string {
	return fmt.Sprintf("webrtc:%s", room)
}

// TokenProvider is the managed-SFU surface the service depends on; *Provider
// is the production implementation.
type TokenProvider interface {
	GenerateToken(user domain.UserID, room domain.RoomID) (string, error)
	Degraded() bool
	ForceFallback()
	URL() string
	Health() ProviderHealth
}

type Service struct {
	bus      *bus.Bus
	provider TokenProvider
	peers    *PeerSet
}

func NewService(b *bus.Bus, p TokenProvider) *Service {
	return &Service{bus: b, provider: p, peers: NewPeerSet()}
}

func (s *Service) Peers() *PeerSet         { return s.peers }
func (s *Service) Provider() TokenProvider { return s.provider }

// strategy is the per-room capability set; joinManaged and joinFallback are
// the two variants selectStrategy can produce.
type strategy func(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) (JoinResult, error)

// selectStrategy picks managed mode unless the provider is degraded
// (credentials missing or override set).
func (s *Service) selectStrategy() strategy {
	if s.provider.Degraded() {
		return s.joinFallback
	}
	return s.joinManaged
}

// Join picks a strategy and joins. A managed-mode token failure degrades this
// single join to fallback; it does not flip the global override.
func (s *Service) Join(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) (JoinResult, error) {
	res, err := s.selectStrategy()(ctx, sess, user, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "voice").Str("room", string(room)).Msg("managed join failed, degrading to fallback")
		return s.joinFallback(ctx, sess, user, room)
	}
	return res, nil
}

func (s *Service) joinManaged(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) (JoinResult, error) {
	token, err := s.provider.GenerateToken(user.ID, room)
	if err != nil {
		return JoinResult{}, err
	}
	s.bus.Broadcast(ctx, string(room), "voice:user-joined", map[string]any{
		"user": user,
		"mode": ModeLiveKit,
	})
	return JoinResult{Mode: ModeLiveKit, Token: token, URL: s.provider.URL()}, nil
}

func (s *Service) joinFallback(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) (JoinResult, error) {
	s.peers.Add(room, user.ID)
	s.bus.Join(fallbackRoom(room), sess)
	s.bus.BroadcastExcept(ctx, fallbackRoom(room), "webrtc:user-joined", sess.SID(), map[string]any{
		"userId": user.ID,
	})
	s.bus.Broadcast(ctx, string(room), "voice:user-joined", map[string]any{
		"user": user,
		"mode": ModeWebRTC,
	})
	return JoinResult{Mode: ModeWebRTC}, nil
}

// ForceFallback sets the process-wide override, joins in fallback mode and
// tells the whole room to switch stacks.
func (s *Service) ForceFallback(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) (JoinResult, error) {
	s.provider.ForceFallback()
	log.Warn().Str("module", "voice").Str("user", string(user.ID)).Str("room", string(room)).Msg("fallback forced")
	res, err := s.joinFallback(ctx, sess, user, room)
	if err != nil {
		return res, err
	}
	s.bus.Broadcast(ctx, string(room), "voice:fallback-activated", map[string]any{
		"user":   user,
		"roomId": room,
	})
	return res, nil
}

func (s *Service) Leave(ctx context.Context, sess bus.Sender, user domain.Identity, room domain.RoomID) {
	if s.peers.Has(room, user.ID) {
		s.peers.Remove(room, user.ID)
		s.bus.Leave(fallbackRoom(room), sess.SID())
		s.bus.Broadcast(ctx, fallbackRoom(room), "webrtc:user-left", map[string]any{
			"userId": user.ID,
		})
	}
	s.bus.Broadcast(ctx, string(room), "voice:user-left", map[string]any{"user": user})
}

func (s *Service) Mute(ctx context.Context, user domain.Identity, room domain.RoomID, muted bool) {
	if s.peers.Has(room, user.ID) {
		s.bus.Broadcast(ctx, fallbackRoom(room), "webrtc:user-muted", map[string]any{
			"userId": user.ID,
			"muted":  muted,
		})
	}
	s.bus.Broadcast(ctx, string(room), "voice:user-muted", map[string]any{
		"user":  user,
		"muted": muted,
	})
}

func (s *Service) PushToTalk(ctx context.Context, user domain.Identity, room domain.RoomID, speaking bool) {
	if s.peers.Has(room, user.ID) {
		s.bus.Broadcast(ctx, fallbackRoom(room), "webrtc:user-speaking", map[string]any{
			"userId":   user.ID,
			"speaking": speaking,
		})
	}
	s.bus.Broadcast(ctx, string(room), "voice:user-speaking", map[string]any{
		"user":     user,
		"speaking": speaking,
	})
}

// Signal relays provider-specific payloads to the fallback sub-room only; the
// server never inspects them.
func (s *Service) Signal(ctx context.Context, sess bus.Sender, room domain.RoomID, data json.RawMessage) {
	s.bus.BroadcastExcept(ctx, fallbackRoom(room), "webrtc:signaling", sess.SID(), data)
}

type Health struct {
	LiveKit ProviderHealth `json:"livekit"`
	WebRTC  WebRTCHealth   `json:"webrtc"`
}

type WebRTCHealth struct {
	Rooms int `json:"rooms"`
	Peers int `json:"peers"`
}

func (s *Service) HealthCheck() Health {
	rooms, peers := s.peers.Totals()
	return Health{
		LiveKit: s.provider.Health(),
		WebRTC:  WebRTCHealth{Rooms: rooms, Peers: peers},
	}
}
