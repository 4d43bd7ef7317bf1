// Package syncstate persists the sync engine's progress: the change
// cursor, zone and subscription setup, the owning account, the pending
// change set and the time of the last successful sync.
//
// The snapshot is one JSON blob in the metadata table, written in a
// single statement so it is replaced atomically.
package syncstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/repositories/metadata"
)

const metadataKey = "sync_state"

type State struct {
	Cursor            []byte     `json:"cursor,omitempty"`
	ZoneReady         bool       `json:"zone_ready"`
	SubscriptionReady bool       `json:"subscription_ready"`
	AccountID         string     `json:"account_id,omitempty"`
	Pending           PendingSet `json:"pending"`
	LastSyncDate      *time.Time `json:"last_sync_date,omitempty"`
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Cursor = bytes.Clone(s.Cursor)
	c.Pending = PendingSet{items: s.Pending.Items()}
	if s.LastSyncDate != nil {
		t := *s.LastSyncDate
		c.LastSyncDate = &t
	}
	return &c
}

// ResetProgress forgets everything tied to the remote side: the cursor,
// the zone and subscription setup and every pending change.
func (s *State) ResetProgress() {
	s.Cursor = nil
	s.ZoneReady = false
	s.SubscriptionReady = false
	s.Pending.Clear()
}

type Store struct {
	repo metadata.Repository
}

func NewStore(repo metadata.Repository) *Store {
	return &Store{repo: repo}
}

// Load returns the persisted state, or an empty one when nothing was
// saved yet.
func (s *Store) Load(ctx context.Context) (*State, error) {
	raw, err := s.repo.Get(ctx, metadataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	st := &State{}
	if raw == nil {
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("failed to decode sync state: %w", err)
	}
	return st, nil
}

func (s *Store) Save(ctx context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}
	if err := s.repo.Set(ctx, metadataKey, raw); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}
