package server

import (
	"sync"

	"github.com/samber/lo"
	"github.com/vibechat/relay/internal/types"
)

// Registry tracks every participant that has ever joined, in join order.
// Entries are never removed, only flagged offline, so a rejoining user
// keeps their position in the roster.
type Registry struct {
	mu           sync.Mutex
	participants []types.Participant
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Upsert registers a participant under their username. If an entry with
// the same username exists it is taken over by the new connection,
// otherwise a new entry is appended. Username matching is case-sensitive.
func (r *Registry) Upsert(username, avatar, connId string) types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := types.Participant{
		ConnectionId: connId,
		Username:     username,
		Avatar:       avatar,
		Online:       true,
	}

	_, i, ok := lo.FindIndexOf(r.participants, func(existing types.Participant) bool {
		return existing.Username == username
	})
	if ok {
		r.participants[i] = p
	} else {
		r.participants = append(r.participants, p)
	}

	return p
}

// MarkOffline flags the participant owning connId as offline. It reports
// false if no online participant owns that connection, e.g. a disconnect
// for a connection already superseded by a rejoin, or a repeated
// disconnect.
func (r *Registry) MarkOffline(connId string) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, i, ok := lo.FindIndexOf(r.participants, func(p types.Participant) bool {
		return p.ConnectionId == connId && p.Online
	})
	if !ok {
		return types.Participant{}, false
	}

	r.participants[i].Online = false
	return r.participants[i], true
}

// UpdateProfile replaces the username and avatar of the participant owning
// connId.
func (r *Registry) UpdateProfile(connId, username, avatar string) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, i, ok := lo.FindIndexOf(r.participants, func(p types.Participant) bool {
		return p.ConnectionId == connId
	})
	if !ok {
		return types.Participant{}, false
	}

	r.participants[i].Username = username
	r.participants[i].Avatar = avatar
	return r.participants[i], true
}

// Snapshot returns a copy of the roster in join order.
func (r *Registry) Snapshot() []types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]types.Participant, len(r.participants))
	copy(roster, r.participants)
	return roster
}
