package bus_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/store/storetest"
)

type capturedEvent struct {
	Event string
	Data  json.RawMessage
}

type fakeSender struct {
	sid string

	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeSender) SID() string { return f.sid }

func (f *fakeSender) Deliver(event string, payload json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{Event: event, Data: payload})
}

func (f *fakeSender) captured() []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedEvent(nil), f.events...)
}

func TestBroadcastReachesAllLocalMembers(t *testing.T) {
	b := bus.New(storetest.Unreachable())
	ctx := context.Background()

	alice := &fakeSender{sid: "sid-a"}
	bob := &fakeSender{sid: "sid-b"}
	outsider := &fakeSender{sid: "sid-c"}
	b.Join("r1", alice)
	b.Join("r1", bob)
	b.Join("r2", outsider)

	b.Broadcast(ctx, "r1", "chat:message", map[string]string{"text": "hi"})

	for _, member := range []*fakeSender{alice, bob} {
		events := member.captured()
		require.Len(t, events, 1)
		assert.Equal(t, "chat:message", events[0].Event)
	}
	assert.Empty(t, outsider.captured(), "other rooms are untouched")
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	b := bus.New(storetest.Unreachable())
	ctx := context.Background()

	alice := &fakeSender{sid: "sid-a"}
	bob := &fakeSender{sid: "sid-b"}
	b.Join("r1", alice)
	b.Join("r1", bob)

	b.BroadcastExcept(ctx, "r1", "webrtc:signaling", "sid-a", map[string]string{"sdp": "offer"})

	assert.Empty(t, alice.captured())
	assert.Len(t, bob.captured(), 1)
}

func TestJoinLeaveMembership(t *testing.T) {
	b := bus.New(storetest.Unreachable())

	alice := &fakeSender{sid: "sid-a"}
	b.Join("r1", alice)
	assert.True(t, b.Has("r1", "sid-a"))
	assert.Equal(t, 1, b.LocalCount("r1"))

	// Rejoin of the same sid does not double-count.
	b.Join("r1", alice)
	assert.Equal(t, 1, b.LocalCount("r1"))

	b.Leave("r1", "sid-a")
	assert.False(t, b.Has("r1", "sid-a"))
	assert.Equal(t, 0, b.LocalCount("r1"))

	// Leaving a room never joined is harmless.
	b.Leave("r9", "sid-a")
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	b := bus.New(storetest.Unreachable())
	b.Broadcast(context.Background(), "nobody-home", "game:started", map[string]string{"mode": "classic"})
}

func TestBroadcastSurvivesPublishOutage(t *testing.T) {
	// The backing store is unreachable in every test here; this one makes the
	// contract explicit: local delivery happens even when the cross-process
	// publish cannot.
	b := bus.New(storetest.Unreachable())
	member := &fakeSender{sid: "sid-a"}
	b.Join("r1", member)

	b.Broadcast(context.Background(), "r1", "room:user-joined", map[string]string{"user": "u1"})
	assert.Len(t, member.captured(), 1)
}
