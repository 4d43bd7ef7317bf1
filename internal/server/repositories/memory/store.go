// Package memory keeps every repository in process memory. It backs the
// server when no database DSN is configured and the service tests.
package memory

import (
	"sync"

	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

type zoneKey struct{ userID, zone string }

type recordKey struct{ userID, zone, id string }

// Store holds the state shared by the repositories of this package.
type Store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	zones         map[zoneKey]models.Zone
	records       map[recordKey]models.Record
}

func NewStore() *Store {
	return &Store{
		users:         map[string]models.User{},
		refreshTokens: map[string]models.RefreshToken{},
		zones:         map[zoneKey]models.Zone{},
		records:       map[recordKey]models.Record{},
	}
}

// Snapshot is a copy of the store contents taken by Snapshot.
type Snapshot struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	zones         map[zoneKey]models.Zone
	records       map[recordKey]models.Record
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot copies the current contents. Values are stored by value and
// never mutated in place, so a shallow copy of the maps is enough.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		users:         copyMap(s.users),
		refreshTokens: copyMap(s.refreshTokens),
		zones:         copyMap(s.zones),
		records:       copyMap(s.records),
	}
}

// Restore replaces the contents with snap.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.refreshTokens = snap.refreshTokens
	s.zones = snap.zones
	s.records = snap.records
}
