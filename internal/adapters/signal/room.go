package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

func (ctl *Controller) handleRoomJoin(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID   string          `json:"roomId"`
		RoomType domain.RoomType `json:"roomType"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Registry.Join(ctx, sess, sess.user, domain.RoomID(p.RoomID), p.RoomType); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleRoomLeave(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Registry.Leave(ctx, sess, sess.user, domain.RoomID(p.RoomID)); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

// Heartbeats are fire-and-forget; no ack either way.
func (ctl *Controller) handleRoomHeartbeat(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		log.Warn().Str("module", "signal").Str("sid", sess.sid).Msg("bad heartbeat payload")
		return
	}
	ctl.Registry.Heartbeat(ctx, sess.sid, domain.RoomID(p.RoomID))
}
