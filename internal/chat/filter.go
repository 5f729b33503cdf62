package chat

import (
	"strings"
	"sync"
)

// Base word list plus the leet-speak and evasion variants moderation has
// collected over time. Extendable at runtime for moderator tooling.
var defaultProfanity = []string{
	"fuck", "shit", "bitch", "asshole", "bastard",
	"scam", "cheater", "hacker",
	"f4ck", "sh1t", "b1tch",
	"fvck", "fcuk", "phuck",
	"bc", "mc", "bhenchod", "madarchod", "chutiya", "gaandu",
	"randi", "harami", "bhosdike", "lodu", "lauda", "lavde", "chodu",
}

type Filter struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

func NewFilter(extra ...string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(defaultProfanity)+len(extra))}
	f.AddWords(defaultProfanity...)
	f.AddWords(extra...)
	return f
}

func (f *Filter) AddWords(words ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f.words[w] = struct{}{}
		}
	}
}

func (f *Filter) RemoveWords(words ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range words {
		delete(f.words, strings.ToLower(strings.TrimSpace(w)))
	}
}

// IsProfane reports whether any token of the message is on the list.
// Tokens are compared lowercased with surrounding punctuation stripped.
func (f *Filter) IsProfane(message string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, tok := range strings.Fields(strings.ToLower(message)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < '0' || r > '9')
		})
		if tok == "" {
			continue
		}
		if _, bad := f.words[tok]; bad {
			return true
		}
	}
	return false
}
