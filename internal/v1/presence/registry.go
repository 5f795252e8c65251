// Package presence owns the roster of connected participants. It is the
// single source of truth for "who is online"; every other component refers to
// participants by connection id only.
package presence

import (
	"sort"
	"sync"

	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

// Registry tracks joined participants keyed by connection id.
//
// Join overwrites in place on re-announcement; Leave on an unknown id is a
// no-op. Display-name collisions are allowed and not an error.
type Registry struct {
	mu           sync.RWMutex
	participants map[types.ConnectionID]protocol.Participant
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[types.ConnectionID]protocol.Participant),
	}
}

// Join inserts or overwrites the participant for id and returns the stored
// snapshot. The caller is responsible for broadcasting the refreshed roster.
func (r *Registry) Join(id types.ConnectionID, profile protocol.JoinRequest) protocol.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := protocol.Participant{
		ConnectionID: string(id),
		DisplayName:  profile.DisplayName,
		AvatarRef:    profile.AvatarRef,
		Online:       true,
	}
	r.participants[id] = p
	metrics.RosterSize.Set(float64(len(r.participants)))
	return p
}

// Leave removes the participant for id, returning the last known snapshot.
// Returns ok=false when the id never joined (or already left); that case is
// not an error.
func (r *Registry) Leave(id types.ConnectionID) (protocol.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if ok {
		delete(r.participants, id)
	}
	metrics.RosterSize.Set(float64(len(r.participants)))
	return p, ok
}

// Get returns the current snapshot for id.
func (r *Registry) Get(id types.ConnectionID) (protocol.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[id]
	return p, ok
}

// Roster returns all joined participants ordered by connection id. The order
// is stable so repeated broadcasts of the same membership compare equal.
func (r *Registry) Roster() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]protocol.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, p)
	}
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].ConnectionID < roster[j].ConnectionID
	})
	return roster
}

// Count returns the number of joined participants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}
