// Package storetest provides store doubles for tests: an in-memory Fake with
// real expiry semantics for the atomic primitives, and an Unreachable store
// whose every operation fails fast, for exercising fail-open paths.
package storetest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizhive/quizsync/internal/store"
)

// Unreachable returns a real Store pointed at a closed port with timeouts
// tuned so operations fail within milliseconds.
func Unreachable() *store.Store {
	return store.NewWithClient(redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		PoolTimeout:  50 * time.Millisecond,
		MaxRetries:   -1,
	}))
}

type entry struct {
	val string
	exp time.Time // zero means no expiry
}

// Fake is an in-memory stand-in for the shared store. Setting Err makes every
// operation fail with it, simulating an outage.
type Fake struct {
	mu    sync.Mutex
	kv    map[string]entry
	sets  map[string]map[string]struct{}
	lists map[string][]string

	Err error
}

func NewFake() *Fake {
	return &Fake{
		kv:    make(map[string]entry),
		sets:  make(map[string]map[string]struct{}),
		lists: make(map[string][]string),
	}
}

func (f *Fake) expired(e entry) bool {
	return !e.exp.IsZero() && time.Now().After(e.exp)
}

func (f *Fake) get(key string) (entry, bool) {
	e, ok := f.kv[key]
	if !ok || f.expired(e) {
		delete(f.kv, key)
		return entry{}, false
	}
	return e, true
}

func (f *Fake) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if _, ok := f.get(key); ok {
		return false, nil
	}
	f.kv[key] = newEntry(value, ttl)
	return true, nil
}

func (f *Fake) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.kv[key] = newEntry(value, ttl)
	return nil
}

func (f *Fake) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	e, ok := f.get(key)
	if !ok {
		return "", nil
	}
	return e.val, nil
}

func (f *Fake) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, key := range keys {
		delete(f.kv, key)
		delete(f.sets, key)
		delete(f.lists, key)
	}
	return nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if _, ok := f.get(key); ok {
		return true, nil
	}
	if members, ok := f.sets[key]; ok && len(members) > 0 {
		return true, nil
	}
	return false, nil
}

func (f *Fake) IncrWindow(_ context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	e, ok := f.get(key)
	if !ok {
		f.kv[key] = newEntry("1", window)
		return 1, nil
	}
	n, _ := strconv.ParseInt(e.val, 10, 64)
	n++
	e.val = strconv.FormatInt(n, 10)
	f.kv[key] = e // expiry untouched, like EXPIRE NX
	return n, nil
}

func (f *Fake) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	set, ok := f.sets[key]
	if !ok {
		set = make(map[string]struct{})
		f.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (f *Fake) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if set, ok := f.sets[key]; ok {
		for _, m := range members {
			delete(set, m)
		}
		if len(set) == 0 {
			delete(f.sets, key)
		}
	}
	return nil
}

func (f *Fake) SIsMember(_ context.Context, key, member string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	_, ok := f.sets[key][member]
	return ok, nil
}

func (f *Fake) PushTrimmed(_ context.Context, key, value string, keep int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	list := append([]string{value}, f.lists[key]...)
	if len(list) > keep {
		list = list[:keep]
	}
	f.lists[key] = list
	return nil
}

func (f *Fake) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	list := f.lists[key]
	if start < 0 || start >= int64(len(list)) {
		return nil, nil
	}
	if stop >= int64(len(list)) || stop < 0 {
		stop = int64(len(list)) - 1
	}
	out := make([]string, 0, stop-start+1)
	out = append(out, list[start:stop+1]...)
	return out, nil
}

func newEntry(val string, ttl time.Duration) entry {
	e := entry{val: val}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	return e
}
