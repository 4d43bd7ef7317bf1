// Package localstore is the on-device record store the rest of the client
// reads from. It batches mutations into transactions and tells listeners
// which records a local edit touched so they can be queued for upload.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/dbx"
)

// Origin tells who made a change. Only OriginLocal changes reach listeners.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

// ChangeSet lists the ids a committed batch touched.
type ChangeSet struct {
	Upserted []string
	Deleted  []string
}

func (c ChangeSet) Empty() bool {
	return len(c.Upserted) == 0 && len(c.Deleted) == 0
}

// Listener is notified after a local batch commits.
type Listener func(ctx context.Context, changes ChangeSet)

type Store struct {
	db *sql.DB

	// mu serializes batches: the store's own execution context.
	mu sync.Mutex

	lmu       sync.RWMutex
	listeners []Listener
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OnChange registers l for local changes.
func (s *Store) OnChange(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Fetch returns the record with id, or nil when there is none.
func (s *Store) Fetch(ctx context.Context, id string) (*models.Record, error) {
	rec, err := records.NewSQLiteRepository(s.db).GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *Store) FetchAllActive(ctx context.Context) ([]*models.Record, error) {
	return records.NewSQLiteRepository(s.db).GetAllActive(ctx)
}

func (s *Store) FetchAll(ctx context.Context) ([]*models.Record, error) {
	return records.NewSQLiteRepository(s.db).GetAll(ctx)
}

// Save runs fn in one transaction. Either every mutation fn makes is
// committed or none is. The returned ChangeSet is also delivered to the
// listeners when origin is OriginLocal.
func (s *Store) Save(ctx context.Context, origin Origin, fn func(ctx context.Context, b *Batch) error) (ChangeSet, error) {
	s.mu.Lock()
	changes, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (ChangeSet, error) {
		b := newBatch(records.NewSQLiteRepository(tx))
		if err := fn(ctx, b); err != nil {
			return ChangeSet{}, err
		}
		return b.changes(), nil
	})
	s.mu.Unlock()

	if err != nil {
		return ChangeSet{}, err
	}

	if origin == OriginLocal && !changes.Empty() {
		s.lmu.RLock()
		listeners := append([]Listener(nil), s.listeners...)
		s.lmu.RUnlock()
		for _, l := range listeners {
			l(ctx, changes)
		}
	}
	return changes, nil
}
