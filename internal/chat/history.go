package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/quizhive/quizsync/internal/domain"
)

// HistoryStore is the slice of the shared store the chat history needs.
type HistoryStore interface {
	PushTrimmed(ctx context.Context, key, value string, keep int, ttl time.Duration) error
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// History is the bounded ephemeral chat window: a most-recent-N list per
// scope, trimmed on every push. It is not an audit log and nothing here is
// guaranteed durable; match-scope lists additionally carry a TTL so they
// vanish with the match.
type History struct {
	store HistoryStore
	limit int
	ttl   time.Duration
}

func NewHistory(s HistoryStore, limit int, ttl time.Duration) *History {
	return &History{store: s, limit: limit, ttl: ttl}
}

// ScopeKey maps a scope plus its target to the backing list key. Friend
// chats share one list per user pair regardless of direction.
func ScopeKey(scope domain.ChatScope, target string, peer string) string {
	switch scope {
	case domain.ScopeMatch:
		return fmt.Sprintf("chat:match:%s", target)
	case domain.ScopeClan:
		return fmt.Sprintf("chat:clan:%s", target)
	case domain.ScopeRoom:
		return fmt.Sprintf("chat:room:%s", target)
	case domain.ScopeFriend:
		pair := []string{target, peer}
		sort.Strings(pair)
		return fmt.Sprintf("chat:friend:%s:%s", pair[0], pair[1])
	default:
		return "chat:public"
	}
}

// Append pushes a record onto the scope's list, best-effort. Match lists are
// TTL'd; the rest are only bounded by length.
func (h *History) Append(ctx context.Context, key string, rec domain.ChatRecord, ephemeral bool) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if ephemeral {
		ttl = h.ttl
	}
	return h.store.PushTrimmed(ctx, key, string(raw), h.limit, ttl)
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, key string, limit int) ([]domain.ChatRecord, error) {
	if limit <= 0 || limit > h.limit {
		limit = h.limit
	}
	raws, err := h.store.ListRange(ctx, key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatRecord, 0, len(raws))
	for _, raw := range raws {
		var rec domain.ChatRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue // skip records a newer/older build wrote differently
		}
		out = append(out, rec)
	}
	return out, nil
}
