package voice

import (
	"sync"

	"github.com/quizhive/quizsync/internal/domain"
)

// PeerSet tracks which users are on the peer-to-peer fallback path, per room.
// This is a non-authoritative per-process view used for signaling relay and
// the health display; authoritative presence lives in the shared store.
type PeerSet struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[domain.UserID]struct{}
}

func NewPeerSet() *PeerSet {
	return &PeerSet{rooms: make(map[domain.RoomID]map[domain.UserID]struct{})}
}

func (p *PeerSet) Add(room domain.RoomID, user domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	peers, ok := p.rooms[room]
	if !ok {
		peers = make(map[domain.UserID]struct{})
		p.rooms[room] = peers
	}
	peers[user] = struct{}{}
}

func (p *PeerSet) Remove(room domain.RoomID, user domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if peers, ok := p.rooms[room]; ok {
		delete(peers, user)
		if len(peers) == 0 {
			delete(p.rooms, room)
		}
	}
}

func (p *PeerSet) Has(room domain.RoomID, user domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[room][user]
	return ok
}

type RoomStat struct {
	RoomID    domain.RoomID `json:"roomId"`
	PeerCount int           `json:"peerCount"`
}

func (p *PeerSet) Stats() []RoomStat {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]RoomStat, 0, len(p.rooms))
	for room, peers := range p.rooms {
		out = append(out, RoomStat{RoomID: room, PeerCount: len(peers)})
	}
	return out
}

// Totals returns room and peer counts for the health check.
func (p *PeerSet) Totals() (rooms, peers int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, members := range p.rooms {
		peers += len(members)
	}
	return len(p.rooms), peers
}
