package chat_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhive/quizsync/internal/bus"
	"github.com/quizhive/quizsync/internal/chat"
	"github.com/quizhive/quizsync/internal/domain"
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

func newChatService(fake *storetest.Fake) (*chat.Service, *bus.Bus) {
	b := bus.New(storetest.Unreachable())
	svc := chat.NewService(
		b,
		chat.NewFilter(),
		chat.NewModeration(fake),
		chat.NewHistory(fake, 200, 0),
	)
	return svc, b
}

func TestSendValidation(t *testing.T) {
	svc, _ := newChatService(storetest.NewFake())
	sender := domain.Identity{ID: "user-1", DisplayName: "Ada"}
	ctx := context.Background()

	cases := []struct {
		name string
		req  chat.SendRequest
		want error
	}{
		{"missing scope", chat.SendRequest{Message: "hi"}, chat.ErrInvalidScope},
		{"unknown scope", chat.SendRequest{Scope: "guild", Message: "hi"}, chat.ErrInvalidScope},
		{"empty message", chat.SendRequest{Scope: domain.ScopeRoom, RoomID: "r1"}, chat.ErrInvalidLength},
		{"oversized message", chat.SendRequest{Scope: domain.ScopeRoom, RoomID: "r1", Message: strings.Repeat("a", 1001)}, chat.ErrInvalidLength},
		{"missing roomId", chat.SendRequest{Scope: domain.ScopeMatch, Message: "hi"}, chat.ErrMissingRoom},
		{"missing clanId", chat.SendRequest{Scope: domain.ScopeClan, Message: "hi"}, chat.ErrMissingClan},
		{"missing receiverId", chat.SendRequest{Scope: domain.ScopeFriend, Message: "hi"}, chat.ErrMissingReceiver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Send(ctx, sender, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSendAcceptsMaxLengthMessage(t *testing.T) {
	svc, _ := newChatService(storetest.NewFake())
	err := svc.Send(context.Background(), domain.Identity{ID: "user-1"}, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: strings.Repeat("a", 1000),
	})
	assert.NoError(t, err)
}

func TestSendLengthCountsCharactersNotBytes(t *testing.T) {
	svc, _ := newChatService(storetest.NewFake())
	ctx := context.Background()
	sender := domain.Identity{ID: "user-1"}

	err := svc.Send(ctx, sender, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: strings.Repeat("é", 1000),
	})
	assert.NoError(t, err, "1000 multibyte characters are within the limit")

	err = svc.Send(ctx, sender, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: strings.Repeat("é", 1001),
	})
	assert.ErrorIs(t, err, chat.ErrInvalidLength)
}

func TestSendBroadcastsAndPersists(t *testing.T) {
	fake := storetest.NewFake()
	svc, b := newChatService(fake)
	ctx := context.Background()

	member := &fakeSender{sid: "sid-2"}
	b.Join("r1", member)

	err := svc.Send(ctx, domain.Identity{ID: "user-1", DisplayName: "Ada"}, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: "good luck everyone",
	})
	require.NoError(t, err)

	events := member.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "chat:message", events[0].Event)

	var rec domain.ChatRecord
	require.NoError(t, json.Unmarshal(events[0].Data, &rec))
	assert.Equal(t, domain.UserID("user-1"), rec.User.ID)
	assert.Equal(t, "good luck everyone", rec.Message)
	assert.Equal(t, domain.ScopeRoom, rec.Scope)
	assert.NotZero(t, rec.Timestamp)

	history := chat.NewHistory(fake, 200, 0)
	recent, err := history.Recent(ctx, chat.ScopeKey(domain.ScopeRoom, "r1", ""), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "good luck everyone", recent[0].Message)
}

func TestSendRejectsProfanityBeforePersistence(t *testing.T) {
	fake := storetest.NewFake()
	svc, b := newChatService(fake)
	ctx := context.Background()

	member := &fakeSender{sid: "sid-2"}
	b.Join("r1", member)

	err := svc.Send(ctx, domain.Identity{ID: "user-1"}, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: "you are such a cheater",
	})
	assert.ErrorIs(t, err, chat.ErrProfanity)
	assert.Empty(t, member.captured(), "rejected message must not reach the room")

	history := chat.NewHistory(fake, 200, 0)
	recent, err := history.Recent(ctx, chat.ScopeKey(domain.ScopeRoom, "r1", ""), 10)
	require.NoError(t, err)
	assert.Empty(t, recent, "rejected message must not be persisted")
}

func TestSendRejectsMutedSender(t *testing.T) {
	fake := storetest.NewFake()
	svc, _ := newChatService(fake)
	ctx := context.Background()

	mod := chat.NewModeration(fake)
	require.NoError(t, mod.Mute(ctx, "r1", "user-1", 0))

	err := svc.Send(ctx, domain.Identity{ID: "user-1"}, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: "hello",
	})
	assert.ErrorIs(t, err, chat.ErrMutedOrBlocked)
}

func TestSendContinuesOnHistoryOutage(t *testing.T) {
	fake := storetest.NewFake()
	b := bus.New(storetest.Unreachable())
	svc := chat.NewService(
		b,
		chat.NewFilter(),
		chat.NewModeration(storetest.NewFake()),
		chat.NewHistory(fake, 200, 0),
	)
	member := &fakeSender{sid: "sid-2"}
	b.Join("r1", member)

	fake.Err = assert.AnError
	err := svc.Send(context.Background(), domain.Identity{ID: "user-1"}, chat.SendRequest{
		Scope:   domain.ScopeRoom,
		RoomID:  "r1",
		Message: "hello",
	})
	assert.NoError(t, err, "persistence is best-effort")
	assert.Len(t, member.captured(), 1, "broadcast still goes out")
}

func TestScopeKeyFriendPairIsDirectionless(t *testing.T) {
	a := chat.ScopeKey(domain.ScopeFriend, "user-b", "user-a")
	b := chat.ScopeKey(domain.ScopeFriend, "user-a", "user-b")
	assert.Equal(t, a, b)
}

func TestHistoryTrimsToLimit(t *testing.T) {
	fake := storetest.NewFake()
	hist := chat.NewHistory(fake, 3, 0)
	ctx := context.Background()
	key := chat.ScopeKey(domain.ScopeRoom, "r1", "")

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		rec := domain.ChatRecord{User: domain.Identity{ID: "u"}, Message: msg, Scope: domain.ScopeRoom}
		require.NoError(t, hist.Append(ctx, key, rec, false))
	}

	recent, err := hist.Recent(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "five", recent[0].Message, "newest first")
	assert.Equal(t, "three", recent[2].Message, "oldest entries trimmed")
}

func TestFileReport(t *testing.T) {
	svc, b := newChatService(storetest.NewFake())
	ctx := context.Background()

	moderator := &fakeSender{sid: "mod-1"}
	b.Join("moderators", moderator)

	rep, err := svc.FileReport(ctx, domain.Identity{ID: "user-1"}, "user-2", "said something awful", "r1", "harassment")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), rep.ReporterID)
	assert.Equal(t, "PENDING", rep.Status)

	events := moderator.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "moderation:new-report", events[0].Event)

	_, err = svc.FileReport(ctx, domain.Identity{ID: "user-1"}, "", "msg", "", "spam")
	assert.ErrorIs(t, err, chat.ErrMissingReportArg)

	_, err = svc.FileReport(ctx, domain.Identity{ID: "user-1"}, "user-2", "msg", "", "")
	assert.ErrorIs(t, err, chat.ErrMissingReportArg, "reason is required")
}
