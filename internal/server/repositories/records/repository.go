// Package records persists record zones and the records inside them.
package records

import (
	"context"

	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

// Repository stores zones and records of all users. Methods that look up a
// single zone or record return common.ErrorNotFound when it is absent.
type Repository interface {
	// EnsureZone creates the zone with generation unless it exists and
	// returns the stored zone either way.
	EnsureZone(ctx context.Context, userID, zone, generation string) (*models.Zone, error)
	GetZone(ctx context.Context, userID, zone string) (*models.Zone, error)
	// LockZone is GetZone that also holds the zone row until the
	// surrounding transaction ends.
	LockZone(ctx context.Context, userID, zone string) (*models.Zone, error)
	SetSubscribed(ctx context.Context, userID, zone string) error
	// NextSeq advances the zone sequence and returns the new value.
	NextSeq(ctx context.Context, userID, zone string) (int64, error)

	Get(ctx context.Context, userID, zone, id string) (*models.Record, error)
	Upsert(ctx context.Context, r *models.Record) error
	// ListSince returns up to limit records and tombstones with a sequence
	// above seq, oldest first.
	ListSince(ctx context.Context, userID, zone string, seq int64, limit int) ([]*models.Record, error)
}
