package signal

import (
	"context"
	"encoding/json"

	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/metrics"
)

func (ctl *Controller) handleGameVote(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string          `json:"roomId"`
		Mode   string          `json:"mode"`
		Type   string          `json:"type"`
		Vote   json.RawMessage `json:"vote"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" || p.Mode == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Game.Vote(ctx, sess.user, domain.RoomID(p.RoomID), p.Mode, p.Type, p.Vote); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleGameState(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID       string `json:"roomId"`
		State        string `json:"state"`
		CurrentState string `json:"currentState"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Game.State(ctx, domain.RoomID(p.RoomID), p.State, p.CurrentState); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleGameStart(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string `json:"roomId"`
		Mode   string `json:"mode"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Game.Start(ctx, sess.user, domain.RoomID(p.RoomID), p.Mode); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}

func (ctl *Controller) handleGameEnd(ctx context.Context, sess *Session, frame inFrame) {
	var p struct {
		RoomID string          `json:"roomId"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(frame.Data, &p); err != nil || p.RoomID == "" {
		ctl.ackError(sess, frame.Ack, "Invalid payload")
		return
	}
	if err := ctl.Game.End(ctx, domain.RoomID(p.RoomID), p.Result); err != nil {
		metrics.ErrorsTotal.Inc()
		ctl.ackError(sess, frame.Ack, err.Error())
		return
	}
	ctl.ackSuccess(sess, frame.Ack)
}
