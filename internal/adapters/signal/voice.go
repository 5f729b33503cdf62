package signal

import (
	"context"
	"encoding/json"

	"github.com/quizhive/quizsync/internal/domain"
)

// Voice handlers never reject with the bare {error} shape: voice is a
// best-effort feature and the client contract is {success:false, error}.

func (ctl *Controller) handleVoiceJoin(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	if sess.user.ID == "" {
		ctl.ackFail(sess, frame.Ack, "User not authenticated")
		return
	}
	res, err := ctl.Voice.Join(ctx, sess, sess.user, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.ackFail(sess, frame.Ack, "Failed to join voice")
		return
	}
	ctl.ack(sess, frame.Ack, map[string]any{
		"success": true,
		"mode":    res.Mode,
		"token":   res.Token,
		"url":     res.URL,
	})
}

func (ctl *Controller) handleVoiceLeave(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	ctl.Voice.Leave(ctx, sess, sess.user, domain.RoomID(p.RoomID))
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleVoiceMute(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
		Muted  bool   `json:"muted"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	ctl.Voice.Mute(ctx, sess.user, domain.RoomID(p.RoomID), p.Muted)
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleVoicePushToTalk(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID   string `json:"roomId"`
		Speaking bool   `json:"speaking"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	ctl.Voice.PushToTalk(ctx, sess.user, domain.RoomID(p.RoomID), p.Speaking)
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleVoiceFallback(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	res, err := ctl.Voice.ForceFallback(ctx, sess, sess.user, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.ackFail(sess, frame.Ack, "Failed to activate fallback")
		return
	}
	ctl.ack(sess, frame.Ack, map[string]any{
		"success": true,
		"mode":    res.Mode,
	})
}

func (ctl *Controller) handleVoiceSignaling(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string          `json:"roomId"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackFail(sess, frame.Ack, "Invalid payload")
		return
	}
	ctl.Voice.Signal(ctx, sess, domain.RoomID(p.RoomID), p.Data)
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleVoiceHealthCheck(sess *Session, frame inFrame) {
	health := ctl.Voice.HealthCheck()
	ctl.ack(sess, frame.Ack, map[string]any{
		"success": true,
		"livekit": health.LiveKit,
		"webrtc":  health.WebRTC,
	})
}
