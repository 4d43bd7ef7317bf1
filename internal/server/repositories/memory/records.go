package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

// Records is the in-memory records.Repository. LockZone does not lock;
// callers serialize writers through the manager's transaction.
type Records struct {
	s *Store
}

func NewRecords(s *Store) *Records {
	return &Records{s: s}
}

func (r *Records) EnsureZone(_ context.Context, userID, zone, generation string) (*models.Zone, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := zoneKey{userID, zone}
	z, ok := r.s.zones[k]
	if !ok {
		z = models.Zone{UserID: userID, Name: zone, Generation: generation, CreatedAt: time.Now().UTC()}
		r.s.zones[k] = z
	}
	return &z, nil
}

func (r *Records) GetZone(_ context.Context, userID, zone string) (*models.Zone, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	z, ok := r.s.zones[zoneKey{userID, zone}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &z, nil
}

func (r *Records) LockZone(ctx context.Context, userID, zone string) (*models.Zone, error) {
	return r.GetZone(ctx, userID, zone)
}

func (r *Records) SetSubscribed(_ context.Context, userID, zone string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := zoneKey{userID, zone}
	z, ok := r.s.zones[k]
	if !ok {
		return common.ErrorNotFound
	}
	z.Subscribed = true
	r.s.zones[k] = z
	return nil
}

func (r *Records) NextSeq(_ context.Context, userID, zone string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := zoneKey{userID, zone}
	z, ok := r.s.zones[k]
	if !ok {
		return 0, common.ErrorNotFound
	}
	z.Seq++
	r.s.zones[k] = z
	return z.Seq, nil
}

func (r *Records) Get(_ context.Context, userID, zone, id string) (*models.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.records[recordKey{userID, zone, id}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (r *Records) Upsert(_ context.Context, rec *models.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *rec
	stored.Fields = append([]byte(nil), rec.Fields...)
	r.s.records[recordKey{rec.UserID, rec.Zone, rec.ID}] = stored
	return nil
}

func (r *Records) ListSince(_ context.Context, userID, zone string, seq int64, limit int) ([]*models.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Record
	for k, rec := range r.s.records {
		if k.userID != userID || k.zone != zone || rec.Seq <= seq {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
