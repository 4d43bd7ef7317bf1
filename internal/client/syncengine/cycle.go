package syncengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dmitrijs2005/habitsync/internal/client/codec"
	"github.com/dmitrijs2005/habitsync/internal/client/conflict"
	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/syncstate"
)

// ScheduleSync starts a cycle, or asks the running one for a follow-up.
// forceFetch makes the cycle fetch remote changes before sending. Any
// number of calls during a cycle result in at most one extra cycle, which
// is forced if any of the calls was.
func (e *Engine) ScheduleSync(forceFetch bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || e.state == StateUnconfigured {
		return
	}
	if e.running {
		e.resyncRequested = true
		e.forceFetchRequested = e.forceFetchRequested || forceFetch
		return
	}

	ctx, cancel := context.WithCancel(e.base)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	if e.state == StateIdle {
		e.state = StateCycling
	}
	go e.run(ctx, cancel, forceFetch, e.done)
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, force bool, done chan struct{}) {
	defer close(done)
	e.notify(e.Status())

	for {
		e.pass(ctx, force)

		e.mu.Lock()
		e.passes++
		if e.active && e.resyncRequested {
			force = e.forceFetchRequested
			e.resyncRequested = false
			e.forceFetchRequested = false
			if ctx.Err() != nil {
				cancel()
				ctx, cancel = context.WithCancel(e.base)
				e.cancel = cancel
			}
			if e.state == StateIdle {
				e.state = StateCycling
			}
			e.mu.Unlock()
			continue
		}

		e.running = false
		e.resyncRequested = false
		e.forceFetchRequested = false
		e.cancel = nil
		if e.state == StateCycling {
			e.state = StateIdle
		}
		status := e.statusLocked()
		e.mu.Unlock()

		cancel()
		e.notify(status)
		return
	}
}

// pass is one sync cycle.
func (e *Engine) pass(ctx context.Context, force bool) {
	e.mu.Lock()
	e.passFailed = false
	configuring := e.state == StateConfiguring
	e.mu.Unlock()

	if configuring {
		if !e.configure(ctx) {
			return
		}
		force = true
	} else {
		e.ensureSubscription(ctx)
	}

	if force {
		e.fetch(ctx)
	}
	if ctx.Err() != nil {
		return
	}

	sent := e.send(ctx)
	if ctx.Err() != nil {
		return
	}
	if sent || !force {
		e.fetch(ctx)
	}
}

// configure prepares the remote zone and the change subscription. It
// reports whether the engine may go on with the cycle.
func (e *Engine) configure(ctx context.Context) bool {
	e.mu.Lock()
	zoneReady := e.snap.ZoneReady
	e.mu.Unlock()

	if !zoneReady {
		if err := e.remote.EnsureZone(ctx); err != nil {
			e.handleFailure(ctx, "ensure_zone", "", err)
			return false
		}
		e.update(ctx, func(s *syncstate.State) { s.ZoneReady = true })
	}
	e.ensureSubscription(ctx)

	e.mu.Lock()
	if e.state == StateConfiguring {
		e.state = StateCycling
	}
	e.mu.Unlock()
	e.logger.Info(ctx, "sync configured")
	return true
}

// ensureSubscription registers for push wake-ups once. A failure only
// costs timeliness, so it is logged and retried on a later cycle.
func (e *Engine) ensureSubscription(ctx context.Context) {
	e.mu.Lock()
	ready := e.snap.SubscriptionReady
	e.mu.Unlock()
	if ready {
		return
	}
	if err := e.remote.RegisterSubscription(ctx); err != nil {
		e.logger.Warn(ctx, "failed to register subscription", "error", err)
		return
	}
	e.update(ctx, func(s *syncstate.State) { s.SubscriptionReady = true })
}

// fetch pulls pages of remote changes until the remote side has no more,
// merging each page and advancing the cursor after it.
func (e *Engine) fetch(ctx context.Context) bool {
	for {
		e.mu.Lock()
		if e.resetCursor {
			e.snap.Cursor = nil
			e.resetCursor = false
		}
		cursor := bytes.Clone(e.snap.Cursor)
		e.mu.Unlock()

		res, err := e.remote.FetchChanges(ctx, cursor)
		if err != nil {
			e.handleFailure(ctx, "fetch", "", err)
			return false
		}
		if _, err := e.merge(ctx, res.Changed, res.Deleted); err != nil {
			if ctx.Err() == nil {
				e.recordError(ctx, "merge", "", err)
			}
			return false
		}
		e.update(ctx, func(s *syncstate.State) { s.Cursor = bytes.Clone(res.Cursor) })

		e.logger.Debug(ctx, "fetched changes", "changed", len(res.Changed), "deleted", len(res.Deleted), "more", res.MoreComing)
		if !res.MoreComing {
			break
		}
		if ctx.Err() != nil {
			return false
		}
	}
	e.markSuccess(ctx)
	return true
}

// merge applies remote records and deletions to the local store in one
// batch and returns the ids whose remote version was stored. A record
// that cannot be decoded is skipped and recorded as the last sync error.
func (e *Engine) merge(ctx context.Context, changed []models.RemoteRecord, deleted []string) (map[string]bool, error) {
	if len(changed) == 0 && len(deleted) == 0 {
		return nil, nil
	}
	var (
		merged  map[string]bool
		skipped []error
	)
	_, err := e.local.Save(ctx, localstore.OriginRemote, func(ctx context.Context, b *localstore.Batch) error {
		merged = make(map[string]bool, len(changed))
		skipped = nil
		for _, rr := range changed {
			remote, err := codec.Decode(rr)
			if err != nil {
				skipped = append(skipped, fmt.Errorf("decode remote record %s: %w", rr.ID, err))
				continue
			}
			local, err := b.Fetch(ctx, remote.ID)
			if err != nil {
				return err
			}
			m := conflict.Resolve(local, remote)
			if m.RemoteWins && rr.Asset != nil {
				e.mergeAsset(ctx, local, m.Record, rr.Asset)
			}
			if err := b.Upsert(ctx, m.Record); err != nil {
				return err
			}
			merged[remote.ID] = true
		}
		for _, id := range deleted {
			removed, err := b.Delete(ctx, id)
			if err != nil {
				return err
			}
			if removed {
				if err := e.assets.Remove(id); err != nil {
					e.logger.Warn(ctx, "failed to remove asset of deleted record", "id", id, "error", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, err := range skipped {
		e.recordError(ctx, "decode", "", err)
	}
	return merged, nil
}

// mergeAsset moves a downloaded asset to the record's own location. A
// local file with the same checksum is kept as is, and so is the local
// reference when the remote asset came without data.
func (e *Engine) mergeAsset(ctx context.Context, local, merged *models.Record, ref *models.AssetRef) {
	if local != nil && local.AudioFileName != "" && ref.Checksum != "" {
		if sum, err := e.assets.Checksum(local.AudioFileName); err == nil && sum == ref.Checksum {
			merged.AudioFileName = local.AudioFileName
			return
		}
	}
	if ref.Path == "" {
		merged.AudioFileName = ""
		if local != nil {
			merged.AudioFileName = local.AudioFileName
		}
		e.logger.Debug(ctx, "remote asset has no data, keeping local reference", "id", merged.ID)
		return
	}

	dst, copied, err := e.assets.Import(merged.ID, ref.Path)
	if err != nil {
		e.logger.Warn(ctx, "failed to import asset", "id", merged.ID, "error", err)
		merged.AudioFileName = ""
		if local != nil {
			merged.AudioFileName = local.AudioFileName
		}
		return
	}
	merged.AudioFileName = dst
	e.logger.Debug(ctx, "asset merged", "id", merged.ID, "path", dst, "copied", copied)
}

// send uploads the pending change set. It reports whether anything was
// sent.
func (e *Engine) send(ctx context.Context) bool {
	e.mu.Lock()
	items := e.snap.Pending.Items()
	e.inFlight = make(map[models.PendingChange]bool, len(items))
	for _, c := range items {
		e.inFlight[c] = false
	}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = nil
		e.mu.Unlock()
	}()

	if len(items) == 0 {
		return false
	}

	var (
		saves   []models.RemoteRecord
		deletes []string
		stale   []models.PendingChange
	)
	for _, c := range items {
		switch c.Kind {
		case models.ChangeSave:
			rec, err := e.local.Fetch(ctx, c.ID)
			if err != nil {
				e.logger.Warn(ctx, "failed to read pending record", "id", c.ID, "error", err)
				continue
			}
			if rec == nil {
				stale = append(stale, c)
				continue
			}
			rr, err := codec.Encode(rec, e.assets)
			if err != nil {
				e.logger.Warn(ctx, "failed to encode pending record", "id", c.ID, "error", err)
				continue
			}
			saves = append(saves, rr)
		case models.ChangeDelete:
			deletes = append(deletes, c.ID)
		}
	}
	if len(stale) > 0 {
		e.update(ctx, func(s *syncstate.State) {
			for _, c := range stale {
				s.Pending.Remove(c)
			}
		})
	}
	if len(saves) == 0 && len(deletes) == 0 {
		return false
	}

	res, err := e.remote.SendChanges(ctx, saves, deletes)
	if err != nil {
		e.handleFailure(ctx, "send", "", err)
		return true
	}

	var (
		completed  []models.PendingChange
		merges     []models.RemoteRecord
		unresolved bool
		zoneGone   bool
		conflicts  []itemFailure
	)
	for _, rr := range res.Saved {
		completed = append(completed, models.Save(rr.ID))
		merges = append(merges, rr)
	}
	for _, id := range res.Deleted {
		completed = append(completed, models.Delete(id))
	}

	failures := make([]itemFailure, 0, len(res.FailedSaves)+len(res.FailedDeletes))
	for _, f := range res.FailedSaves {
		failures = append(failures, itemFailure{change: models.Save(f.ID), err: f.Err, server: f.ServerRecord})
	}
	for _, f := range res.FailedDeletes {
		failures = append(failures, itemFailure{change: models.Delete(f.ID), err: f.Err})
	}

	for _, f := range failures {
		switch kind := Classify(f.err); kind {
		case KindConflict:
			e.logger.Info(ctx, "record changed remotely, merging", "id", f.change.ID)
			if f.server != nil {
				merges = append(merges, *f.server)
			}
			conflicts = append(conflicts, f)
		case KindStructural:
			zoneGone = true
		case KindPermanent:
			e.logger.Warn(ctx, "dropping change rejected by remote", "change", f.change.String(), "error", f.err)
			completed = append(completed, f.change)
		case KindAccountChanged:
			e.handleFailure(ctx, "send", f.change.ID, f.err)
			return true
		case KindTransient, KindCursorExpired:
			e.logger.Debug(ctx, "change not sent, will retry", "change", f.change.String(), "kind", kind.String(), "error", f.err)
		default:
			unresolved = true
			e.recordError(ctx, "send", f.change.ID, f.err)
		}
	}

	merged, err := e.merge(ctx, merges, nil)
	if err != nil && ctx.Err() == nil {
		e.recordError(ctx, "merge", "", err)
		unresolved = true
	}

	// A conflict is retried right away only when the server version was
	// stored; otherwise the stale token would conflict again on every pass.
	retry := false
	for _, f := range conflicts {
		if merged[f.change.ID] {
			retry = true
			continue
		}
		unresolved = true
		if ctx.Err() == nil {
			e.recordError(ctx, "send", f.change.ID, fmt.Errorf("server version not merged: %w", f.err))
		}
	}

	e.update(ctx, func(s *syncstate.State) {
		for _, c := range completed {
			if e.inFlight[c] {
				continue
			}
			s.Pending.Remove(c)
		}
	})

	if zoneGone {
		e.recoverZone(ctx)
	}
	if retry {
		e.mu.Lock()
		e.resyncRequested = true
		e.mu.Unlock()
	}
	if !unresolved {
		e.markSuccess(ctx)
	}
	e.logger.Debug(ctx, "sent changes",
		"saved", len(res.Saved), "deleted", len(res.Deleted),
		"failed_saves", len(res.FailedSaves), "failed_deletes", len(res.FailedDeletes))
	return true
}

type itemFailure struct {
	change models.PendingChange
	err    error
	server *models.RemoteRecord
}

// recoverZone recreates a zone the remote side lost. The affected changes
// stay queued and go out on a later cycle.
func (e *Engine) recoverZone(ctx context.Context) {
	e.logger.Warn(ctx, "remote zone missing, recreating")
	e.update(ctx, func(s *syncstate.State) { s.ZoneReady = false })
	if err := e.remote.EnsureZone(ctx); err != nil {
		e.logger.Warn(ctx, "failed to recreate zone", "error", err)
		return
	}
	e.update(ctx, func(s *syncstate.State) { s.ZoneReady = true })
}

func (e *Engine) handleFailure(ctx context.Context, op, id string, err error) Kind {
	kind := Classify(err)
	switch kind {
	case KindTransient:
		e.logger.Debug(ctx, "sync operation interrupted", "op", op, "error", err)
	case KindStructural:
		e.recoverZone(ctx)
	case KindConflict, KindPermanent:
		e.logger.Warn(ctx, "sync operation rejected", "op", op, "id", id, "kind", kind.String(), "error", err)
	case KindAccountChanged:
		e.logger.Warn(ctx, "remote account changed, discarding sync progress", "op", op)
		e.resetProgress(ctx, nil)
	case KindCursorExpired:
		e.logger.Info(ctx, "change cursor expired, refetching everything", "op", op)
		e.mu.Lock()
		e.resetCursor = true
		if e.running {
			e.resyncRequested = true
			e.forceFetchRequested = true
		}
		e.mu.Unlock()
	default:
		e.recordError(ctx, op, id, err)
	}
	return kind
}

func (e *Engine) recordError(ctx context.Context, op, id string, err error) {
	e.logger.Error(ctx, "sync operation failed", "op", op, "id", id, "error", err)
	e.mu.Lock()
	e.lastSyncError = err
	e.passFailed = true
	e.mu.Unlock()
}

func (e *Engine) markSuccess(ctx context.Context) {
	now := e.now().UTC()
	e.update(ctx, func(s *syncstate.State) {
		s.LastSyncDate = &now
		e.lastSyncDate = &now
		if !e.passFailed {
			e.lastSyncError = nil
		}
	})
}
