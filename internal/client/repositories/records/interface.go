// Package records is the SQLite persistence of habit records on the client.
package records

import (
	"context"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
)

// Repository describes CRUD and query operations for records.
type Repository interface {
	// GetByID returns common.ErrorNotFound when id is unknown.
	GetByID(ctx context.Context, id string) (*models.Record, error)

	// GetAllActive returns non archived records, oldest first.
	GetAllActive(ctx context.Context) ([]*models.Record, error)

	// GetAll returns every record including archived ones.
	GetAll(ctx context.Context) ([]*models.Record, error)

	// Upsert inserts r or replaces the stored row with the same id.
	Upsert(ctx context.Context, r *models.Record) error

	// DeleteByID removes the row. Deleting an unknown id is not an error;
	// the returned flag reports whether a row was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// DeleteAll removes every row.
	DeleteAll(ctx context.Context) error
}
