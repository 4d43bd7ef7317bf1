// Package syncengine keeps the local record store and the remote record
// store eventually consistent.
//
// An Engine runs at most one sync cycle at a time. Each cycle fetches
// remote changes (when forced), merges them through the conflict
// resolver, sends the pending change set and fetches again to pick up
// server assigned values. Triggers that arrive while a cycle is running
// are coalesced into a single follow-up cycle.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/syncstate"
	"github.com/dmitrijs2005/habitsync/internal/logging"
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateUnconfigured State = iota
	StateConfiguring
	StateIdle
	StateCycling
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateIdle:
		return "idle"
	case StateCycling:
		return "cycling"
	default:
		return "unconfigured"
	}
}

// ErrUnknownRecord is returned when enqueuing a change for a record the
// local store does not have.
var ErrUnknownRecord = errors.New("record does not exist locally")

type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now, used to stamp LastSyncDate.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	remote RemoteStore
	local  LocalStore
	assets AssetStore
	states *syncstate.Store
	logger logging.Logger
	now    func() time.Time

	base       context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	state  State
	active bool
	snap   *syncstate.State

	running             bool
	cancel              context.CancelFunc
	done                chan struct{}
	resyncRequested     bool
	forceFetchRequested bool
	resetCursor         bool
	passes              int
	passFailed          bool

	// inFlight holds the changes of the send in progress; true marks a
	// change enqueued again while it was being sent.
	inFlight map[models.PendingChange]bool

	lastSyncDate  *time.Time
	lastSyncError error
	observers     []Observer
}

func New(remote RemoteStore, local LocalStore, assets AssetStore, states *syncstate.Store, opts ...Option) *Engine {
	base, cancel := context.WithCancel(context.Background())
	e := &Engine{
		remote:     remote,
		local:      local,
		assets:     assets,
		states:     states,
		logger:     logging.NopLogger{},
		now:        time.Now,
		base:       base,
		baseCancel: cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("module", "sync_engine")
	return e
}

// AddObserver registers o for status changes.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	if e.snap != nil {
		return nil
	}
	snap, err := e.states.Load(ctx)
	if err != nil {
		return err
	}
	e.snap = snap
	e.lastSyncDate = snap.LastSyncDate
	return nil
}

// ActivateSync allows cycles to run. The first activation configures the
// remote zone and subscription and then runs a forced fetch.
func (e *Engine) ActivateSync(ctx context.Context) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil
	}
	if err := e.loadLocked(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("activate sync: %w", err)
	}
	if e.state == StateUnconfigured {
		e.state = StateConfiguring
	}
	e.active = true
	e.mu.Unlock()

	e.logger.Info(ctx, "sync activated")
	e.ScheduleSync(true)
	return nil
}

// DeactivateSync stops cycles and cancels the one in flight. Pending
// changes and the persisted state are kept.
func (e *Engine) DeactivateSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	if e.cancel != nil {
		e.cancel()
	}
}

// Close deactivates the engine and waits for the running cycle to stop.
func (e *Engine) Close() {
	e.DeactivateSync()
	e.baseCancel()
	_ = e.Wait(context.Background())
}

// EnqueueUpload queues a save of record id. It is a no-op until sync has
// been activated or an account is known.
func (e *Engine) EnqueueUpload(ctx context.Context, id string) error {
	return e.enqueue(ctx, models.Save(id))
}

// EnqueueDelete queues a remote delete of record id. Call it before the
// record is removed locally.
func (e *Engine) EnqueueDelete(ctx context.Context, id string) error {
	return e.enqueue(ctx, models.Delete(id))
}

// enqueue queues c while sync is active or an account is known, so edits
// made offline are sent after the next activation.
func (e *Engine) enqueue(ctx context.Context, c models.PendingChange) error {
	e.mu.Lock()
	enabled := e.active || (e.snap != nil && e.snap.AccountID != "")
	e.mu.Unlock()
	if !enabled {
		return nil
	}

	rec, err := e.local.Fetch(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", c, err)
	}
	if rec == nil {
		return fmt.Errorf("enqueue %s: %w", c, ErrUnknownRecord)
	}

	e.mu.Lock()
	if _, ok := e.inFlight[c]; ok {
		e.inFlight[c] = true
	}
	if e.snap.Pending.Add(c) {
		e.persistLocked(ctx)
	}
	e.mu.Unlock()

	e.ScheduleSync(false)
	return nil
}

// RequestFullSync forgets the change cursor and fetches everything.
func (e *Engine) RequestFullSync() {
	e.mu.Lock()
	e.resetCursor = true
	e.mu.Unlock()
	e.ScheduleSync(true)
}

// ChangeAccount records the signed in account. Switching from one known
// account to another discards the cursor and every pending change and
// starts over from a clean slate.
func (e *Engine) ChangeAccount(ctx context.Context, accountID string) error {
	e.mu.Lock()
	if err := e.loadLocked(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("change account: %w", err)
	}
	previous := e.snap.AccountID
	if previous == accountID {
		e.mu.Unlock()
		return nil
	}
	if previous == "" {
		e.snap.AccountID = accountID
		e.persistLocked(ctx)
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.logger.Warn(ctx, "account changed, discarding sync progress", "previous", previous, "account", accountID)
	e.resetProgress(ctx, &accountID)
	e.ScheduleSync(true)
	return nil
}

// Watch schedules a forced cycle for every wake-up received on
// notifications until ctx is done or the channel is closed.
func (e *Engine) Watch(ctx context.Context, notifications <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}
			e.ScheduleSync(true)
		}
	}
}

// Wait blocks until no cycle is running or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		if !e.running {
			e.mu.Unlock()
			return nil
		}
		done := e.done
		e.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) LastSyncDate() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSyncDate == nil {
		return nil
	}
	t := *e.lastSyncDate
	return &t
}

func (e *Engine) LastSyncError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSyncError
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Pending returns the queued changes.
func (e *Engine) Pending() []models.PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil
	}
	return e.snap.Pending.Items()
}

func (e *Engine) statusLocked() Status {
	s := Status{IsBusy: e.running, LastSyncError: e.lastSyncError}
	if e.lastSyncDate != nil {
		t := *e.lastSyncDate
		s.LastSyncDate = &t
	}
	return s
}

func (e *Engine) notify(s Status) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()
	for _, o := range observers {
		o.OnStateChanged(s)
	}
}

// persistLocked writes the snapshot. A failure is logged and otherwise
// ignored; the in-memory state stays authoritative.
func (e *Engine) persistLocked(ctx context.Context) {
	if err := e.states.Save(context.WithoutCancel(ctx), e.snap); err != nil {
		e.logger.Error(ctx, "failed to persist sync state", "error", err)
	}
}

func (e *Engine) update(ctx context.Context, fn func(s *syncstate.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.snap)
	e.persistLocked(ctx)
}

// resetProgress drops the cursor, zone setup and pending changes, and
// sends the engine back to configuring. accountID, when set, becomes the
// owning account.
func (e *Engine) resetProgress(ctx context.Context, accountID *string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.ResetProgress()
	if accountID != nil {
		e.snap.AccountID = *accountID
	}
	e.resetCursor = false
	if e.state != StateUnconfigured {
		e.state = StateConfiguring
	}
	if e.running {
		e.resyncRequested = true
		e.forceFetchRequested = true
	}
	e.persistLocked(ctx)
}

// LocalChangeListener returns a local store listener that queues an
// upload for every record a local save touched. Deletes are queued by
// the caller before the row is removed.
func (e *Engine) LocalChangeListener() localstore.Listener {
	return func(ctx context.Context, cs localstore.ChangeSet) {
		for _, id := range cs.Upserted {
			if err := e.EnqueueUpload(ctx, id); err != nil {
				e.logger.Warn(ctx, "failed to queue upload", "id", id, "error", err)
			}
		}
	}
}
