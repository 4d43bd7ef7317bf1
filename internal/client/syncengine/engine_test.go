package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/assets"
	"github.com/dmitrijs2005/habitsync/internal/client/codec"
	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/migrations"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/habitsync/internal/client/syncstate"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type device struct {
	engine *Engine
	local  *localstore.Store
	files  *assets.FileStore
	states *syncstate.Store
}

func newDevice(t *testing.T, srv *fakeServer) *device {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))

	d := &device{
		local:  localstore.New(db),
		files:  assets.NewFileStore(memfs.New()),
		states: syncstate.NewStore(metadata.NewSQLiteRepository(db)),
	}
	d.engine = New(&deviceRemote{srv: srv, files: d.files}, d.local, d.files, d.states)
	t.Cleanup(d.engine.Close)
	return d
}

func (d *device) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.engine.Wait(ctx))
}

func (d *device) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, d.engine.ActivateSync(context.Background()))
	d.wait(t)
}

func (d *device) upsert(t *testing.T, r *models.Record) {
	t.Helper()
	_, err := d.local.Save(context.Background(), localstore.OriginLocal, func(ctx context.Context, b *localstore.Batch) error {
		return b.Upsert(ctx, r)
	})
	require.NoError(t, err)
}

func (d *device) record(t *testing.T, id string) *models.Record {
	t.Helper()
	r, err := d.local.Fetch(context.Background(), id)
	require.NoError(t, err)
	return r
}

func (d *device) passes() int {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.engine.passes
}

func newRecord(id, text string, updated time.Time) *models.Record {
	return &models.Record{ID: id, Text: text, TargetCount: 3, DateCreated: t0, UpdatedAt: updated}
}

func encoded(t *testing.T, r *models.Record) models.RemoteRecord {
	t.Helper()
	rr, err := codec.Encode(r, nil)
	require.NoError(t, err)
	return rr
}

func TestActivate_ConfiguresAndFetches(t *testing.T) {
	srv := newFakeServer()
	srv.zone = true
	srv.put(encoded(t, newRecord("r1", "remote", t0)))

	d := newDevice(t, srv)
	assert.Equal(t, StateUnconfigured, d.engine.State())

	d.activate(t)

	assert.Equal(t, StateIdle, d.engine.State())
	got := d.record(t, "r1")
	require.NotNil(t, got)
	assert.Equal(t, "remote", got.Text)
	assert.Equal(t, []byte("v1"), got.VersionToken)

	ensure, subscribe, _, _ := srv.counters()
	assert.Equal(t, 1, ensure)
	assert.Equal(t, 1, subscribe)
	assert.NotNil(t, d.engine.LastSyncDate())
	assert.NoError(t, d.engine.LastSyncError())
	assert.False(t, d.engine.IsBusy())

	st, err := d.states.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.ZoneReady)
	assert.True(t, st.SubscriptionReady)
	assert.Equal(t, []byte("1"), st.Cursor)
}

func TestActivate_SecondActivationSkipsConfigured(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	d.engine.DeactivateSync()
	d.activate(t)

	ensure, subscribe, _, _ := srv.counters()
	assert.Equal(t, 1, ensure)
	assert.Equal(t, 1, subscribe)
}

func TestFetch_FollowsPages(t *testing.T) {
	srv := newFakeServer()
	srv.zone = true
	srv.pageSize = 2
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		srv.put(encoded(t, newRecord(id, id, t0)))
	}

	d := newDevice(t, srv)
	d.activate(t)

	all, err := d.local.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 5)
	_, _, _, fetches := srv.counters()
	assert.Equal(t, 3, fetches)
}

func TestEnqueueUpload_SendsAndClearsPending(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	rr, _, ok := srv.get("r1")
	require.True(t, ok)
	assert.Equal(t, "hello", rr.Fields[codec.FieldText])
	assert.Empty(t, d.engine.Pending())
	assert.Equal(t, rr.VersionToken, d.record(t, "r1").VersionToken)

	st, err := d.states.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Pending.Len())
}

func TestEnqueue_Idempotent(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.set(func(s *fakeServer) { s.sendErr = common.ErrUnavailable })

	d.upsert(t, newRecord("r1", "hello", t0))
	ctx := context.Background()
	require.NoError(t, d.engine.EnqueueUpload(ctx, "r1"))
	require.NoError(t, d.engine.EnqueueUpload(ctx, "r1"))
	d.wait(t)

	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())
	assert.NoError(t, d.engine.LastSyncError())
}

func TestEnqueue_NoopWithoutAccount(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	ctx := context.Background()
	d.upsert(t, newRecord("r1", "hello", t0))

	require.NoError(t, d.engine.EnqueueUpload(ctx, "r1"))
	assert.Empty(t, d.engine.Pending())

	d.activate(t)
	d.engine.DeactivateSync()
	require.NoError(t, d.engine.EnqueueDelete(ctx, "r1"))
	assert.Empty(t, d.engine.Pending())
}

func TestEnqueue_OfflineChangesSentOnActivation(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	ctx := context.Background()

	require.NoError(t, d.engine.ChangeAccount(ctx, "alice"))
	d.upsert(t, newRecord("r1", "written offline", t0))
	require.NoError(t, d.engine.EnqueueUpload(ctx, "r1"))
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())
	assert.False(t, d.engine.IsBusy())

	d.activate(t)

	rr, _, ok := srv.get("r1")
	require.True(t, ok)
	assert.Equal(t, "written offline", rr.Fields[codec.FieldText])
	assert.Empty(t, d.engine.Pending())
}

func TestEnqueue_UnknownRecord(t *testing.T) {
	d := newDevice(t, newFakeServer())
	d.activate(t)

	err := d.engine.EnqueueUpload(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownRecord)
	assert.Empty(t, d.engine.Pending())
}

func TestScheduleSync_CoalescesWhileCycling(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	gate := make(chan struct{})
	entered := make(chan struct{}, 4)
	srv.set(func(s *fakeServer) { s.sendGate, s.sendEntered = gate, entered })

	before := d.passes()
	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("send did not start")
	}
	assert.True(t, d.engine.IsBusy())
	for i := 0; i < 10; i++ {
		d.engine.ScheduleSync(i%2 == 0)
	}
	close(gate)
	d.wait(t)

	assert.Equal(t, 2, d.passes()-before)
	assert.Empty(t, d.engine.Pending())
}

func TestSend_ConflictRemoteNewerWins(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	srv.put(encoded(t, newRecord("r1", "from elsewhere", t0.Add(time.Hour))))
	d.upsert(t, newRecord("r1", "local", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	got := d.record(t, "r1")
	assert.Equal(t, "from elsewhere", got.Text)
	rr, _, _ := srv.get("r1")
	assert.Equal(t, "from elsewhere", rr.Fields[codec.FieldText])
	assert.Equal(t, rr.VersionToken, got.VersionToken)
	assert.Empty(t, d.engine.Pending())
}

func TestSend_ConflictLocalNewerWins(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	srv.put(encoded(t, newRecord("r1", "from elsewhere", t0)))
	d.upsert(t, newRecord("r1", "local", t0.Add(time.Hour)))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	rr, _, _ := srv.get("r1")
	assert.Equal(t, "local", rr.Fields[codec.FieldText])
	assert.Equal(t, "local", d.record(t, "r1").Text)
	assert.Empty(t, d.engine.Pending())
}

func TestSend_ConflictWithUndecodableServerVersionSettles(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	bad := encoded(t, newRecord("r1", "from elsewhere", t0))
	bad.Fields[codec.FieldText] = 42
	srv.put(bad)
	d.upsert(t, newRecord("r1", "local", t0.Add(time.Hour)))
	passes := d.passes()

	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	_, _, sends, _ := srv.counters()
	assert.Equal(t, 1, sends)
	assert.Equal(t, passes+1, d.passes(), "no follow-up pass for an unmerged conflict")
	assert.Equal(t, StateIdle, d.engine.State())
	assert.ErrorIs(t, d.engine.LastSyncError(), codec.ErrInvalidField)
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())
	assert.Equal(t, "local", d.record(t, "r1").Text)
}

func TestSend_ConflictWithoutServerVersionSettles(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.set(func(s *fakeServer) { s.saveErrs["r1"] = common.ErrConflict })

	d.upsert(t, newRecord("r1", "local", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	_, _, sends, _ := srv.counters()
	assert.Equal(t, 1, sends)
	assert.ErrorIs(t, d.engine.LastSyncError(), common.ErrConflict)
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())

	srv.set(func(s *fakeServer) { delete(s.saveErrs, "r1") })
	d.engine.ScheduleSync(false)
	d.wait(t)
	assert.Empty(t, d.engine.Pending())
	assert.NoError(t, d.engine.LastSyncError())
}

func TestMerge_RemoteAssetWithoutDataKeepsLocalFile(t *testing.T) {
	d := newDevice(t, newFakeServer())
	ctx := context.Background()

	path, err := d.files.Write("r1", []byte("my recording"))
	require.NoError(t, err)
	local := newRecord("r1", "local", t0)
	local.AudioFileName = path
	d.upsert(t, local)

	rr := encoded(t, newRecord("r1", "newer remote", t0.Add(time.Hour)))
	rr.Asset = &models.AssetRef{Checksum: "server-side-only"}
	rr.VersionToken = []byte("v9")

	merged, err := d.engine.merge(ctx, []models.RemoteRecord{rr}, nil)
	require.NoError(t, err)
	assert.True(t, merged["r1"])

	got := d.record(t, "r1")
	assert.Equal(t, "newer remote", got.Text)
	assert.Equal(t, path, got.AudioFileName)
	assert.Equal(t, []byte("v9"), got.VersionToken)
}

func TestFetch_UndecodableRecordIsReported(t *testing.T) {
	srv := newFakeServer()
	srv.zone = true
	bad := encoded(t, newRecord("bad", "x", t0))
	bad.Fields[codec.FieldRepeatCount] = "many"
	srv.put(bad)
	srv.put(encoded(t, newRecord("good", "fine", t0)))

	d := newDevice(t, srv)
	d.activate(t)

	assert.ErrorIs(t, d.engine.LastSyncError(), codec.ErrInvalidField)
	assert.Nil(t, d.record(t, "bad"))
	assert.Equal(t, "fine", d.record(t, "good").Text)
	assert.NotNil(t, d.engine.LastSyncDate())
}

func TestSend_ZoneMissingIsRecreated(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.set(func(s *fakeServer) { s.zone = false })

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	ensure, _, _, _ := srv.counters()
	assert.Equal(t, 2, ensure)
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())
	_, _, ok := srv.get("r1")
	assert.False(t, ok)

	d.engine.ScheduleSync(false)
	d.wait(t)
	_, _, ok = srv.get("r1")
	assert.True(t, ok)
	assert.Empty(t, d.engine.Pending())
}

func TestSend_PermanentFailureIsDropped(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	d.upsert(t, newRecord("r1", "never uploaded", t0))
	require.NoError(t, d.engine.EnqueueDelete(context.Background(), "r1"))
	d.wait(t)

	assert.Empty(t, d.engine.Pending())
	assert.NoError(t, d.engine.LastSyncError())
}

func TestSend_UnclassifiedFailureSurfaces(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	quota := errors.New("quota exceeded")
	srv.set(func(s *fakeServer) { s.saveErrs["r1"] = quota })

	var (
		mu       sync.Mutex
		statuses []Status
	)
	d.engine.AddObserver(ObserverFunc(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	}))

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	assert.ErrorIs(t, d.engine.LastSyncError(), quota)
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())

	mu.Lock()
	last := statuses[len(statuses)-1]
	mu.Unlock()
	assert.False(t, last.IsBusy)
	assert.ErrorIs(t, last.LastSyncError, quota)

	srv.set(func(s *fakeServer) { delete(s.saveErrs, "r1") })
	d.engine.ScheduleSync(false)
	d.wait(t)
	assert.NoError(t, d.engine.LastSyncError())
	assert.Empty(t, d.engine.Pending())
}

func TestObserver_SeesBusyAndIdle(t *testing.T) {
	d := newDevice(t, newFakeServer())

	var (
		mu       sync.Mutex
		statuses []Status
	)
	d.engine.AddObserver(ObserverFunc(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	}))
	d.activate(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].IsBusy)
	assert.False(t, statuses[1].IsBusy)
	assert.NotNil(t, statuses[1].LastSyncDate)
}

func TestChangeAccount_ResetsProgress(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	ctx := context.Background()

	require.NoError(t, d.engine.ChangeAccount(ctx, "alice"))
	d.activate(t)
	srv.set(func(s *fakeServer) { s.sendErr = common.ErrUnavailable })

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(ctx, "r1"))
	d.wait(t)
	require.Len(t, d.engine.Pending(), 1)

	require.NoError(t, d.engine.ChangeAccount(ctx, "alice"))
	require.Len(t, d.engine.Pending(), 1)

	require.NoError(t, d.engine.ChangeAccount(ctx, "bob"))
	d.wait(t)

	assert.Empty(t, d.engine.Pending())
	assert.Equal(t, StateIdle, d.engine.State())
	ensure, _, _, _ := srv.counters()
	assert.Equal(t, 2, ensure)

	st, err := d.states.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", st.AccountID)
	assert.True(t, st.ZoneReady)
}

func TestFetch_AccountChangedResetsProgress(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.set(func(s *fakeServer) {
		s.sendErr = common.ErrUnavailable
		s.fetchErrs = []error{common.ErrAccountChanged}
	})

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)

	assert.Empty(t, d.engine.Pending())
	ensure, _, _, _ := srv.counters()
	assert.Equal(t, 2, ensure)
}

func TestFetch_CursorExpiredRefetchesEverything(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.put(encoded(t, newRecord("r1", "hello", t0)))

	srv.set(func(s *fakeServer) {
		s.fetchErrs = []error{common.ErrCursorExpired}
		s.fetchCursors = nil
	})
	d.engine.ScheduleSync(true)
	d.wait(t)

	srv.mu.Lock()
	cursors := srv.fetchCursors
	srv.mu.Unlock()
	require.Len(t, cursors, 2)
	assert.Nil(t, cursors[1])
	assert.NotNil(t, d.record(t, "r1"))
}

func TestRequestFullSync(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.put(encoded(t, newRecord("r1", "hello", t0)))
	d.engine.ScheduleSync(true)
	d.wait(t)

	srv.set(func(s *fakeServer) { s.fetchCursors = nil })
	d.engine.RequestFullSync()
	d.wait(t)

	srv.mu.Lock()
	cursors := srv.fetchCursors
	srv.mu.Unlock()
	require.NotEmpty(t, cursors)
	assert.Nil(t, cursors[0])
}

func TestDeactivate_PreservesPending(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.set(func(s *fakeServer) { s.sendErr = common.ErrUnavailable })

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	d.wait(t)
	d.engine.DeactivateSync()

	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())

	reloaded := New(&deviceRemote{srv: srv, files: d.files}, d.local, d.files, d.states)
	t.Cleanup(reloaded.Close)
	srv.set(func(s *fakeServer) { s.sendErr = nil })
	require.NoError(t, reloaded.ActivateSync(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, reloaded.Wait(ctx))

	_, _, ok := srv.get("r1")
	assert.True(t, ok)
	assert.Empty(t, reloaded.Pending())
}

func TestDeactivate_CancelsRunningCycle(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)

	gate := make(chan struct{})
	entered := make(chan struct{}, 4)
	srv.set(func(s *fakeServer) { s.sendGate, s.sendEntered = gate, entered })

	d.upsert(t, newRecord("r1", "hello", t0))
	require.NoError(t, d.engine.EnqueueUpload(context.Background(), "r1"))
	<-entered

	d.engine.DeactivateSync()
	d.wait(t)
	assert.False(t, d.engine.IsBusy())
	assert.Equal(t, []models.PendingChange{models.Save("r1")}, d.engine.Pending())
	close(gate)
}

func TestWatch_SchedulesForcedFetch(t *testing.T) {
	srv := newFakeServer()
	d := newDevice(t, srv)
	d.activate(t)
	srv.put(encoded(t, newRecord("r1", "pushed", t0)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wake := make(chan struct{})
	go d.engine.Watch(ctx, wake)
	wake <- struct{}{}

	assert.Eventually(t, func() bool {
		r, err := d.local.Fetch(context.Background(), "r1")
		return err == nil && r != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTwoDevices_AssetArchivalAndDeletion(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	a.activate(t)
	b.activate(t)
	ctx := context.Background()

	audio := []byte("RIFF....fake audio")
	p, err := a.files.Write("r1", audio)
	require.NoError(t, err)
	r := newRecord("r1", "I am calm", t0)
	r.AudioFileName = p
	a.upsert(t, r)
	require.NoError(t, a.engine.EnqueueUpload(ctx, "r1"))
	a.wait(t)

	b.engine.ScheduleSync(true)
	b.wait(t)
	got := b.record(t, "r1")
	require.NotNil(t, got)
	assert.Equal(t, "I am calm", got.Text)
	assert.Equal(t, assets.Path("r1"), got.AudioFileName)
	data, err := b.files.Read(got.AudioFileName)
	require.NoError(t, err)
	assert.Equal(t, audio, data)

	archived := a.record(t, "r1")
	archived.IsArchived = true
	archived.Touch(t0.Add(time.Minute))
	a.upsert(t, archived)
	require.NoError(t, a.engine.EnqueueUpload(ctx, "r1"))
	a.wait(t)

	b.engine.ScheduleSync(true)
	b.wait(t)
	got = b.record(t, "r1")
	require.NotNil(t, got)
	assert.True(t, got.IsArchived)
	assert.Equal(t, assets.Path("r1"), got.AudioFileName)

	require.NoError(t, a.engine.EnqueueDelete(ctx, "r1"))
	_, err = a.local.Save(ctx, localstore.OriginLocal, func(ctx context.Context, b *localstore.Batch) error {
		_, err := b.Delete(ctx, "r1")
		return err
	})
	require.NoError(t, err)
	a.wait(t)
	_, _, ok := srv.get("r1")
	assert.False(t, ok)

	b.engine.ScheduleSync(true)
	b.wait(t)
	assert.Nil(t, b.record(t, "r1"))
	exists, err := b.files.Exists(assets.Path("r1"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTwoDevices_LastWriterWins(t *testing.T) {
	srv := newFakeServer()
	a := newDevice(t, srv)
	b := newDevice(t, srv)
	a.activate(t)
	b.activate(t)
	ctx := context.Background()

	a.upsert(t, newRecord("r1", "X", t0))
	require.NoError(t, a.engine.EnqueueUpload(ctx, "r1"))
	a.wait(t)
	b.engine.ScheduleSync(true)
	b.wait(t)

	// Both edit offline; B edits later.
	srv.set(func(s *fakeServer) { s.sendErr = common.ErrUnavailable })
	ra := a.record(t, "r1")
	ra.Text = "Y"
	ra.Touch(t0.Add(time.Minute))
	a.upsert(t, ra)
	require.NoError(t, a.engine.EnqueueUpload(ctx, "r1"))
	a.wait(t)

	rb := b.record(t, "r1")
	rb.Text = "Z"
	rb.Touch(t0.Add(2 * time.Minute))
	b.upsert(t, rb)
	require.NoError(t, b.engine.EnqueueUpload(ctx, "r1"))
	b.wait(t)

	srv.set(func(s *fakeServer) { s.sendErr = nil })
	a.engine.ScheduleSync(false)
	a.wait(t)
	b.engine.ScheduleSync(false)
	b.wait(t)
	a.engine.ScheduleSync(true)
	a.wait(t)

	assert.Equal(t, "Z", a.record(t, "r1").Text)
	assert.Equal(t, "Z", b.record(t, "r1").Text)
	rr, _, _ := srv.get("r1")
	assert.Equal(t, "Z", rr.Fields[codec.FieldText])
}
