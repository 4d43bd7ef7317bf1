package syncengine

import (
	"context"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
)

// RemoteStore is the shared record service the engine syncs with.
type RemoteStore interface {
	// EnsureZone creates the record zone if needed. Idempotent.
	EnsureZone(ctx context.Context) error
	// RegisterSubscription asks the remote side to wake this device on
	// changes. Idempotent.
	RegisterSubscription(ctx context.Context) error
	// FetchChanges returns changes after cursor; a nil cursor means
	// from the beginning.
	FetchChanges(ctx context.Context, cursor []byte) (models.FetchResult, error)
	// SendChanges saves and deletes records. Per-item failures are
	// reported in the result, an error fails the whole batch.
	SendChanges(ctx context.Context, saves []models.RemoteRecord, deletes []string) (models.SendResult, error)
}

// LocalStore is the on-device store merges are written to.
type LocalStore interface {
	Fetch(ctx context.Context, id string) (*models.Record, error)
	Save(ctx context.Context, origin localstore.Origin, fn func(ctx context.Context, b *localstore.Batch) error) (localstore.ChangeSet, error)
}

// AssetStore holds the audio attachments of records.
type AssetStore interface {
	Exists(path string) (bool, error)
	Checksum(path string) (string, error)
	Import(id, src string) (string, bool, error)
	Remove(id string) error
}

// Status is what observers see of the engine.
type Status struct {
	IsBusy        bool
	LastSyncDate  *time.Time
	LastSyncError error
}

// Observer is told whenever Status changes.
type Observer interface {
	OnStateChanged(Status)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Status)

func (f ObserverFunc) OnStateChanged(s Status) { f(s) }
