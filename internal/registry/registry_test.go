package registry_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/domain"
	"github.com/quizhive/quizsync/internal/registry"
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

func (f *fakeSender) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.Event)
	}
	return names
}

func newRegistry(fake *storetest.Fake) (*registry.Registry, *bus.Bus) {
	b := bus.New(storetest.Unreachable())
	return registry.New(b, fake), b
}

func TestJoinAndLeave(t *testing.T) {
	reg, b := newRegistry(storetest.NewFake())
	ctx := context.Background()
	sess := &fakeSender{sid: "sid-1"}
	user := domain.Identity{ID: "user-1", DisplayName: "Ada"}

	require.NoError(t, reg.Join(ctx, sess, user, "r1", domain.RoomMatch))
	assert.True(t, reg.Member("sid-1", "r1"))
	assert.Equal(t, 1, b.LocalCount("r1"))
	assert.Equal(t, []string{"room:user-joined"}, sess.eventNames())

	require.NoError(t, reg.Leave(ctx, sess, user, "r1"))
	assert.False(t, reg.Member("sid-1", "r1"))
	assert.Equal(t, 0, b.LocalCount("r1"))
}

func TestJoinRejectsUnknownRoomType(t *testing.T) {
	reg, _ := newRegistry(storetest.NewFake())
	sess := &fakeSender{sid: "sid-1"}
	err := reg.Join(context.Background(), sess, domain.Identity{ID: "u"}, "r1", "tournament")
	assert.ErrorIs(t, err, registry.ErrInvalidRoomType)
}

func TestDoubleJoinRejected(t *testing.T) {
	reg, _ := newRegistry(storetest.NewFake())
	ctx := context.Background()
	sess := &fakeSender{sid: "sid-1"}
	user := domain.Identity{ID: "user-1"}

	require.NoError(t, reg.Join(ctx, sess, user, "r1", domain.RoomMatch))
	assert.ErrorIs(t, reg.Join(ctx, sess, user, "r1", domain.RoomMatch), registry.ErrAlreadyJoined)
}

func TestDoubleJoinRejectedAcrossProcesses(t *testing.T) {
	// Same session id joining via two registries sharing one store: the
	// second join must lose the presence claim even though the second
	// process has no local membership for it.
	fake := storetest.NewFake()
	regA, _ := newRegistry(fake)
	regB, _ := newRegistry(fake)
	ctx := context.Background()
	user := domain.Identity{ID: "user-1"}

	require.NoError(t, regA.Join(ctx, &fakeSender{sid: "sid-1"}, user, "r1", domain.RoomMatch))
	err := regB.Join(ctx, &fakeSender{sid: "sid-1"}, user, "r1", domain.RoomMatch)
	assert.ErrorIs(t, err, registry.ErrAlreadyJoined)
}

func TestJoinFailsClosedOnStoreOutage(t *testing.T) {
	fake := storetest.NewFake()
	fake.Err = assert.AnError
	reg, b := newRegistry(fake)
	sess := &fakeSender{sid: "sid-1"}

	err := reg.Join(context.Background(), sess, domain.Identity{ID: "u"}, "r1", domain.RoomMatch)
	assert.ErrorIs(t, err, registry.ErrJoinFailed)
	assert.Equal(t, 0, b.LocalCount("r1"), "failed join must not leave local membership behind")
}

func TestJoinBroadcastsToExistingMembers(t *testing.T) {
	reg, _ := newRegistry(storetest.NewFake())
	ctx := context.Background()
	first := &fakeSender{sid: "sid-1"}
	second := &fakeSender{sid: "sid-2"}

	require.NoError(t, reg.Join(ctx, first, domain.Identity{ID: "user-1"}, "r1", domain.RoomCustom))
	require.NoError(t, reg.Join(ctx, second, domain.Identity{ID: "user-2"}, "r1", domain.RoomCustom))

	events := first.captured()
	require.Len(t, events, 2, "first member sees own join and the second's")
	assert.Equal(t, "room:user-joined", events[1].Event)

	var payload struct {
		User   domain.Identity `json:"user"`
		RoomID domain.RoomID   `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(events[1].Data, &payload))
	assert.Equal(t, domain.UserID("user-2"), payload.User.ID)
	assert.Equal(t, domain.RoomID("r1"), payload.RoomID)
}

func TestDisconnectSweep(t *testing.T) {
	reg, b := newRegistry(storetest.NewFake())
	ctx := context.Background()
	leaver := &fakeSender{sid: "sid-1"}
	watcher := &fakeSender{sid: "sid-2"}
	user := domain.Identity{ID: "user-1"}

	require.NoError(t, reg.Join(ctx, leaver, user, "r1", domain.RoomMatch))
	require.NoError(t, reg.Join(ctx, leaver, user, "r2", domain.RoomClan))
	require.NoError(t, reg.Join(ctx, watcher, domain.Identity{ID: "user-2"}, "r1", domain.RoomMatch))
	require.NoError(t, reg.Join(ctx, watcher, domain.Identity{ID: "user-2"}, "r2", domain.RoomClan))

	reg.DisconnectSweep(ctx, leaver, user)

	assert.Empty(t, reg.Rooms("sid-1"))
	assert.False(t, reg.Member("sid-1", "r1"))
	assert.False(t, reg.Member("sid-1", "r2"))
	assert.Equal(t, 1, b.LocalCount("r1"), "other members stay")

	left := 0
	for _, name := range watcher.eventNames() {
		if name == "room:user-left" {
			left++
		}
	}
	assert.Equal(t, 2, left, "exactly one user-left per held room")

	// A second sweep for the same session is a no-op.
	before := len(watcher.captured())
	reg.DisconnectSweep(ctx, leaver, user)
	assert.Len(t, watcher.captured(), before)
}

func TestRejoinAfterLeave(t *testing.T) {
	reg, _ := newRegistry(storetest.NewFake())
	ctx := context.Background()
	sess := &fakeSender{sid: "sid-1"}
	user := domain.Identity{ID: "user-1"}

	require.NoError(t, reg.Join(ctx, sess, user, "r1", domain.RoomMatch))
	require.NoError(t, reg.Leave(ctx, sess, user, "r1"))
	assert.NoError(t, reg.Join(ctx, sess, user, "r1", domain.RoomMatch), "presence key is released on leave")
}
