package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/metrics"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sess *Session) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", sess.sid).Msg("readPump closing")
		sess.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := sess.conn.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", sess.sid).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(ctx, sess, data)
		}
	}
}

// handleFrame is the single dispatch point: rate limit, route, and convert
// anything a handler panics with into a structured ack failure so one bad
// event can never take the connection down for its other rooms.
func (ctl *Controller) handleFrame(ctx context.Context, sess *Session, data []byte) {
	var frame inFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", sess.sid).Msg("bad frame")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.ErrorsTotal.Inc()
			log.Error().Str("module", "signal").Str("type", frame.Type).
				Interface("panic", r).Msg("handler panic recovered")
			ctl.ackFail(sess, frame.Ack, fmt.Sprintf("%s failed", frame.Type))
		}
	}()

	if ok, reason := ctl.Limiter.Allow(ctx, string(sess.user.ID)); !ok {
		ctl.ackError(sess, frame.Ack, reason)
		return
	}

	switch frame.Type {
	case "room:join":
		ctl.handleRoomJoin(ctx, sess, frame)
	case "room:leave":
		ctl.handleRoomLeave(ctx, sess, frame)
	case "room:heartbeat":
		ctl.handleRoomHeartbeat(ctx, sess, frame)
	case "chat:send":
		ctl.handleChatSend(ctx, sess, frame)
	case "chat:mute":
		ctl.handleChatMute(ctx, sess, frame)
	case "chat:unmute":
		ctl.handleChatUnmute(ctx, sess, frame)
	case "chat:block":
		ctl.handleChatBlock(ctx, sess, frame)
	case "chat:unblock":
		ctl.handleChatUnblock(ctx, sess, frame)
	case "chat:report":
		ctl.handleChatReport(ctx, sess, frame)
	case "game:vote":
		ctl.handleGameVote(ctx, sess, frame)
	case "game:state":
		ctl.handleGameState(ctx, sess, frame)
	case "game:start":
		ctl.handleGameStart(ctx, sess, frame)
	case "game:end":
		ctl.handleGameEnd(ctx, sess, frame)
	case "voice:join":
		ctl.handleVoiceJoin(ctx, sess, frame)
	case "voice:leave":
		ctl.handleVoiceLeave(ctx, sess, frame)
	case "voice:mute":
		ctl.handleVoiceMute(ctx, sess, frame)
	case "voice:push-to-talk":
		ctl.handleVoicePushToTalk(ctx, sess, frame)
	case "voice:fallback":
		ctl.handleVoiceFallback(ctx, sess, frame)
	case "voice:signaling":
		ctl.handleVoiceSignaling(ctx, sess, frame)
	case "voice:health-check":
		ctl.handleVoiceHealthCheck(sess, frame)
	default:
		log.Warn().Str("module", "signal").Str("type", frame.Type).Msg("unknown event")
	}
}

// ack sends the reply for a request frame. Frames without an ack id are
// fire-and-forget and get no reply.
func (ctl *Controller) ack(sess *Session, ackID int64, payload any) {
	if ackID == 0 {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal ack")
		return
	}
	frame, err := json.Marshal(outFrame{Type: "ack", Ack: ackID, Data: raw})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal ack frame")
		return
	}
	if err := sess.conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", sess.sid).Msg("drop ack")
	}
}

func (ctl *Controller) ackSuccess(sess *Session, ackID int64) {
	ctl.ack(sess, ackID, map[string]any{"success": true})
}

// ackError is the rejection shape for room/chat/game events.
func (ctl *Controller) ackError(sess *Session, ackID int64, reason string) {
	ctl.ack(sess, ackID, map[string]any{"error": reason})
}

// ackFail is the voice-flavored failure shape: success flag plus error.
func (ctl *Controller) ackFail(sess *Session, ackID int64, reason string) {
	ctl.ack(sess, ackID, map[string]any{"success": false, "error": reason})
}
