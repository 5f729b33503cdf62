// Package signal is the websocket controller: it upgrades authenticated
// connections, pumps frames, and dispatches inbound events to the feature
// services. Every inbound event passes the rate limiter before dispatch, and
// every handler's reply goes through the ack envelope.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quizhive/quizsync/internal/auth"
	"github.com/quizhive/quizsync/internal/chat"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/game"
	"github.com/quizhive/quizsync/internal/metrics"
	"github.com/quizhive/quizsync/internal/ratelimit"
	"github.com/quizhive/quizsync/internal/registry"
	"github.com/quizhive/quizsync/internal/voice"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Gate     *auth.Gate
	Limiter  *ratelimit.Limiter
	Registry *registry.Registry
	Chat     *chat.Service
	Game     *game.Service
	Voice    *voice.Service
	Users    *metrics.UserTracker

	// AuthDisabled connections get a per-connection anonymous identity.
	AuthDisabled bool
}

// WsConn is one websocket connection with a bounded outbound queue.
type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Session binds a connection to its immutable identity. It is the bus.Sender
// the fan-out delivers through.
type Session struct {
	sid  string
	user domain.Identity
	conn *WsConn
}

func (s *Session) SID() string           { return s.sid }
func (s *Session) User() domain.Identity { return s.user }

func (s *Session) Deliver(event string, payload json.RawMessage) {
	frame, err := json.Marshal(outFrame{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("marshal frame")
		return
	}
	if err := s.conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", s.sid).Str("event", event).Msg("drop frame")
	}
}

type inFrame struct {
	Type string          `json:"type"`
	Ack  int64           `json:"ack,omitempty"`
	Data json.RawMessage `json:"data"`
}

type outFrame struct {
	Type string          `json:"type"`
	Ack  int64           `json:"ack,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS authenticates the handshake and upgrades it. The gate runs before
// anything else: anonymous connections never reach a handler.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}

	var user domain.Identity
	if ctl.AuthDisabled {
		user = domain.Identity{ID: domain.UserID(uuid.NewString()), DisplayName: "Anonymous User"}
	} else {
		resolved, err := ctl.Gate.Verify(token)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrNoSecret) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		user = *resolved
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sess := &Session{
		sid:  uuid.NewString(),
		user: user,
		conn: &WsConn{conn: ws, send: make(chan []byte, 32)},
	}
	log.Info().Str("module", "signal").Str("sid", sess.sid).Str("user", string(user.ID)).Msg("new WS connection")

	metrics.RequestsTotal.Inc()
	metrics.ActiveConnections.Inc()
	ctl.Users.Observe(string(user.ID))
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, sess.conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sess)
		// Implicit leave: one user-left per held room, gauges wound down.
		ctl.Registry.DisconnectSweep(context.WithoutCancel(ctx), sess, sess.user)
		metrics.ActiveConnections.Dec()
		metrics.ConnectionDuration.Observe(time.Since(started).Seconds())
	}()
}
