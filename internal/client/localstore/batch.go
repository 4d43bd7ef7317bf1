package localstore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/habitsync/internal/common"
)

// Batch is the transactional view handed to Store.Save callbacks. It
// must not be used after the callback returns.
type Batch struct {
	repo     records.Repository
	order    []string
	upserted map[string]bool
	deleted  map[string]bool
}

func newBatch(repo records.Repository) *Batch {
	return &Batch{
		repo:     repo,
		upserted: make(map[string]bool),
		deleted:  make(map[string]bool),
	}
}

// Fetch returns the record with id as seen inside the batch, or nil.
func (b *Batch) Fetch(ctx context.Context, id string) (*models.Record, error) {
	rec, err := b.repo.GetByID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return rec, err
}

func (b *Batch) Upsert(ctx context.Context, r *models.Record) error {
	if err := b.repo.Upsert(ctx, r); err != nil {
		return err
	}
	b.track(r.ID)
	b.upserted[r.ID] = true
	delete(b.deleted, r.ID)
	return nil
}

// Delete removes the record; the flag reports whether it existed.
func (b *Batch) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := b.repo.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		b.track(id)
		b.deleted[id] = true
		delete(b.upserted, id)
	}
	return removed, nil
}

func (b *Batch) track(id string) {
	if !b.upserted[id] && !b.deleted[id] {
		b.order = append(b.order, id)
	}
}

func (b *Batch) changes() ChangeSet {
	var cs ChangeSet
	for _, id := range b.order {
		switch {
		case b.upserted[id]:
			cs.Upserted = append(cs.Upserted, id)
		case b.deleted[id]:
			cs.Deleted = append(cs.Deleted, id)
		}
	}
	return cs
}
