package cli

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/habitsync/internal/client/assets"
	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/migrations"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/services"
	"github.com/dmitrijs2005/habitsync/internal/client/syncengine"
	"github.com/dmitrijs2005/habitsync/internal/logging"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func readerFromLines(lines ...string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

type fakeAuth struct {
	regUser string
	regPass []byte
	regErr  error

	onlineUser string
	onlineID   string
	onlineErr  error

	offlineUser string
	offlineID   string
	offlineErr  error

	pingErr error

	clearCalled bool
	clearErr    error
}

func (f *fakeAuth) Register(_ context.Context, user string, pass []byte) error {
	f.regUser, f.regPass = user, append([]byte(nil), pass...)
	return f.regErr
}
func (f *fakeAuth) OnlineLogin(_ context.Context, user string, _ []byte) (string, error) {
	f.onlineUser = user
	return f.onlineID, f.onlineErr
}
func (f *fakeAuth) OfflineLogin(_ context.Context, user string, _ []byte) (string, error) {
	f.offlineUser = user
	return f.offlineID, f.offlineErr
}
func (f *fakeAuth) AccountID(context.Context) (string, error) { return f.onlineID, nil }
func (f *fakeAuth) ClearOfflineData(context.Context) error {
	f.clearCalled = true
	return f.clearErr
}
func (f *fakeAuth) Close(context.Context) error { return nil }
func (f *fakeAuth) Ping(context.Context) error  { return f.pingErr }

type fakeEngine struct {
	mu          sync.Mutex
	active      bool
	activations int
	account     string
	fullSyncs   int
	deletes     []string
	watching    int
	status      syncengine.Status
	pending     []models.PendingChange
}

func (f *fakeEngine) ActivateSync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = true
	f.activations++
	return nil
}
func (f *fakeEngine) DeactivateSync() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}
func (f *fakeEngine) ChangeAccount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account = id
	return nil
}
func (f *fakeEngine) RequestFullSync() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullSyncs++
}
func (f *fakeEngine) Watch(ctx context.Context, ch <-chan struct{}) {
	f.mu.Lock()
	f.watching++
	f.mu.Unlock()
	<-ctx.Done()
}
func (f *fakeEngine) Wait(context.Context) error { return nil }
func (f *fakeEngine) Status() syncengine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
func (f *fakeEngine) Pending() []models.PendingChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}
func (f *fakeEngine) Close() {}
func (f *fakeEngine) EnqueueDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeEngine) isActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type fakeSubscriber struct {
	calls int
	err   error
}

func (f *fakeSubscriber) Subscribe(context.Context) (<-chan struct{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make(chan struct{}), nil
}

type testApp struct {
	*App
	auth   *fakeAuth
	engine *fakeEngine
	sub    *fakeSubscriber
	buf    *bytes.Buffer
}

// newTestApp builds an App over an in-memory database with fake remote
// parts. input feeds the prompts.
func newTestApp(t *testing.T, input ...string) *testApp {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))

	ta := &testApp{
		auth:   &fakeAuth{onlineID: "acc-1"},
		engine: &fakeEngine{},
		sub:    &fakeSubscriber{},
		buf:    &bytes.Buffer{},
	}
	files := assets.NewFileStore(memfs.New())
	ta.App = &App{
		logger:        logging.NopLogger{},
		authService:   ta.auth,
		recordService: services.NewRecordService(localstore.New(db), files, ta.engine),
		engine:        ta.engine,
		subscriber:    ta.sub,
		reader:        readerFromLines(input...),
		out:           ta.buf,
	}
	return ta
}

func (ta *testApp) loginAs(account string) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	ta.accountID = account
	ta.authorized = true
}
