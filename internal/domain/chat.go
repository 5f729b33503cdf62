package domain

// ChatScope selects where a message is persisted and fanned out.
type ChatScope string

const (
	ScopeMatch  ChatScope = "match"
	ScopeClan   ChatScope = "clan"
	ScopeRoom   ChatScope = "room"
	ScopePublic ChatScope = "public"
	ScopeFriend ChatScope = "friend"
)

func (s ChatScope) Valid() bool {
	switch s {
	case ScopeMatch, ScopeClan, ScopeRoom, ScopePublic, ScopeFriend:
		return true
	}
	return false
}

// ChatRecord is one entry of the bounded ephemeral history. It is replayed in
// insertion order only, never queried by content.
type ChatRecord struct {
	User      Identity  `json:"user"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
	Scope     ChatScope `json:"type"`
}
