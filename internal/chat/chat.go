// Package chat validates, filters and relays chat messages, and owns the
// moderation state the relay path consults.
package chat

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

const MaxMessageLen = 1000

var (
	ErrInvalidScope     = errors.New("Invalid or missing chat type")
	ErrInvalidLength    = errors.New("Invalid message length")
	ErrProfanity        = errors.New("Message contains inappropriate language")
	ErrMutedOrBlocked   = errors.New("User is muted or blocked")
	ErrMissingRoom      = errors.New("Missing roomId")
	ErrMissingClan      = errors.New("Missing clanId for clan chat")
	ErrMissingReceiver  = errors.New("Missing receiverId for friend chat")
	ErrSendFailed       = errors.New("Failed to send message")
	ErrMissingReportArg = errors.New("Missing required fields")
)

type SendRequest struct {
	Scope      domain.ChatScope `json:"type"`
	Message    string           `json:"message"`
	RoomID     string           `json:"roomId"`
	ClanID     string           `json:"clanId"`
	ReceiverID string           `json:"receiverId"`
}

type Service struct {
	bus        *bus.Bus
	filter     *Filter
	moderation *Moderation
	history    *History
}

func NewService(b *bus.Bus, f *Filter, m *Moderation, h *History) *Service {
	return &Service{bus: b, filter: f, moderation: m, history: h}
}

func (s *Service) Moderation() *Moderation { return s.moderation }
func (s *Service) History() *History       { return s.history }

// Send runs the full message pipeline: validate, filter, moderate, persist,
// broadcast. Any failed step drops the message with a specific rejection;
// only persistence is best-effort.
func (s *Service) Send(ctx context.Context, sender domain.Identity, req SendRequest) error {
	if !req.Scope.Valid() {
		return ErrInvalidScope
	}
	if req.Message == "" || utf8.RuneCountInString(req.Message) > MaxMessageLen {
		return ErrInvalidLength
	}

	var target string
	switch req.Scope {
	case domain.ScopeMatch, domain.ScopeRoom:
		if req.RoomID == "" {
			return ErrMissingRoom
		}
		target = req.RoomID
	case domain.ScopeClan:
		if req.ClanID == "" {
			return ErrMissingClan
		}
		target = req.ClanID
	case domain.ScopeFriend:
		if req.ReceiverID == "" {
			return ErrMissingReceiver
		}
		target = req.ReceiverID
	case domain.ScopePublic:
		target = "public"
	}

	if s.filter.IsProfane(req.Message) {
		return ErrProfanity
	}
	if s.moderation.Restricted(ctx, domain.RoomID(target), sender.ID) {
		return ErrMutedOrBlocked
	}

	rec := domain.ChatRecord{
		User:      sender,
		Message:   req.Message,
		Timestamp: time.Now().UnixMilli(),
		Scope:     req.Scope,
	}

	// Persistence is a side channel: the broadcast still goes out if the
	// store write fails, but the failure is logged.
	key := ScopeKey(req.Scope, target, string(sender.ID))
	if req.Scope == domain.ScopeFriend {
		key = ScopeKey(req.Scope, req.ReceiverID, string(sender.ID))
	}
	if err := s.history.Append(ctx, key, rec, req.Scope == domain.ScopeMatch); err != nil {
		log.Warn().Err(err).Str("module", "chat").Str("scope", string(req.Scope)).Msg("history append failed")
	}

	s.bus.Broadcast(ctx, target, "chat:message", rec)
	metrics.MessagesTotal.Inc()
	return nil
}

type Report struct {
	ReporterID domain.UserID `json:"reporterId"`
	ReportedID domain.UserID `json:"reportedUserId"`
	Message    string        `json:"message"`
	RoomID     string        `json:"roomId,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Timestamp  int64         `json:"timestamp"`
	Status     string        `json:"status"`
}

// FileReport notifies the moderators room. Reports are not persisted here;
// the ack contract stays success-only so the client flow is not broken.
func (s *Service) FileReport(ctx context.Context, reporter domain.Identity, reported domain.UserID, message, roomID, reason string) (Report, error) {
	if reported == "" || message == "" || reason == "" {
		return Report{}, ErrMissingReportArg
	}
	rep := Report{
		ReporterID: reporter.ID,
		ReportedID: reported,
		Message:    message,
		RoomID:     roomID,
		Reason:     reason,
		Timestamp:  time.Now().UnixMilli(),
		Status:     "PENDING",
	}
	log.Info().Str("module", "chat").
		Str("reporter", string(rep.ReporterID)).
		Str("reported", string(rep.ReportedID)).
		Msg("chat report filed")
	s.bus.Broadcast(ctx, "moderators", "moderation:new-report", rep)
	return rep, nil
}
