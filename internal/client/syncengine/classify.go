package syncengine

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/habitsync/internal/common"
)

// Kind is how the engine reacts to a failure.
type Kind int

const (
	// KindUnclassified failures are logged as errors, stay queued and
	// surface through LastSyncError.
	KindUnclassified Kind = iota
	// KindTransient failures stay queued for the next cycle.
	KindTransient
	// KindStructural failures mean the zone is gone: recreate it and
	// keep the change queued.
	KindStructural
	// KindConflict means the record changed remotely: merge the server
	// version and retry the local change.
	KindConflict
	// KindPermanent failures drop the queued operation.
	KindPermanent
	// KindAccountChanged discards the cursor and all pending changes.
	KindAccountChanged
	// KindCursorExpired discards the cursor and fetches from scratch.
	KindCursorExpired
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindStructural:
		return "structural"
	case KindConflict:
		return "conflict"
	case KindPermanent:
		return "permanent"
	case KindAccountChanged:
		return "account_changed"
	case KindCursorExpired:
		return "cursor_expired"
	default:
		return "unclassified"
	}
}

// Classify maps a remote store error to its Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnclassified
	case errors.Is(err, common.ErrUnavailable),
		errors.Is(err, common.ErrBusy),
		errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, common.ErrZoneNotFound):
		return KindStructural
	case errors.Is(err, common.ErrConflict):
		return KindConflict
	case errors.Is(err, common.ErrNotFound):
		return KindPermanent
	case errors.Is(err, common.ErrAccountChanged):
		return KindAccountChanged
	case errors.Is(err, common.ErrCursorExpired):
		return KindCursorExpired
	default:
		return KindUnclassified
	}
}
