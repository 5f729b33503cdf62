package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/chat"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

func (ctl *Controller) handleChatSend(ctx context.Context, sess *Session, frame inFrame) {
	var req chat.SendRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Chat.Send(ctx, sess.user, req); err != nil {
		metrics.ErrorsTotal.Inc()
		if errors.Is(err, chat.ErrSendFailed) {
			log.Error().Err(err).Str("module", "signal").Str("sid", sess.sid).Msg("chat send failed")
		}
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleChatMute(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		UserID string `json:"userId"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == "" || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Chat.Moderation().Mute(ctx, domain.RoomID(p.RoomID), domain.UserID(p.UserID), 0); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, "Failed to mute user")
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleChatUnmute(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		UserID string `json:"userId"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == "" || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Chat.Moderation().Unmute(ctx, domain.RoomID(p.RoomID), domain.UserID(p.UserID)); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, "Failed to unmute user")
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

// Blocks are directional and attributed to the calling identity.
func (ctl *Controller) handleChatBlock(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Chat.Moderation().Block(ctx, sess.user.ID, domain.UserID(p.UserID)); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, "Failed to block user")
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleChatUnblock(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Chat.Moderation().Unblock(ctx, sess.user.ID, domain.UserID(p.UserID)); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, "Failed to unblock user")
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleChatReport(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
		RoomID  string `json:"roomId"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	rep, err := ctl.Chat.FileReport(ctx, sess.user, domain.UserID(p.UserID), p.Message, p.RoomID, p.Reason)
	if err != nil {
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ack(sess, frame.Ack, map[string]any{
		"success":  true,
		"reportId": rep.Timestamp,
	})
}
