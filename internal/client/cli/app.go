package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/assets"
	"github.com/dmitrijs2005/habitsync/internal/client/client"
	"github.com/dmitrijs2005/habitsync/internal/client/config"
	"github.com/dmitrijs2005/habitsync/internal/client/localstore"
	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/habitsync/internal/client/services"
	"github.com/dmitrijs2005/habitsync/internal/client/syncengine"
	"github.com/dmitrijs2005/habitsync/internal/client/syncstate"
	"github.com/dmitrijs2005/habitsync/internal/filex"
	"github.com/dmitrijs2005/habitsync/internal/logging"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

const keyDeviceID = "device_id"

// SyncEngine is the part of the sync engine the CLI drives.
type SyncEngine interface {
	ActivateSync(ctx context.Context) error
	DeactivateSync()
	ChangeAccount(ctx context.Context, accountID string) error
	RequestFullSync()
	Watch(ctx context.Context, notifications <-chan struct{})
	Wait(ctx context.Context) error
	Status() syncengine.Status
	Pending() []models.PendingChange
	Close()
}

// Subscriber opens the change notification stream of the server.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

type App struct {
	config        *config.Config
	logger        logging.Logger
	authService   services.AuthService
	recordService services.RecordService
	engine        SyncEngine
	subscriber    Subscriber
	db            *sql.DB

	mu         sync.Mutex
	accountID  string
	userName   string
	authorized bool // logged in against the server in this session
	Mode       Mode
	unwatch    context.CancelFunc

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	dataDir, err := filex.EnsureSubdDir(filepath.Dir(c.DataDir), filepath.Base(c.DataDir))
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	logger, err := logging.NewProductionZapLogger(c.LogLevel, c.LogPath())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath())
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	meta := metadata.NewSQLiteRepository(db)
	deviceID, err := loadDeviceID(ctx, meta)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	files := assets.NewOSFileStore(dataDir)
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr,
		client.WithZone(c.Zone),
		client.WithDeviceID(deviceID),
		client.WithAssets(files),
		client.WithPageSize(c.PageSize),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	local := localstore.New(db)
	engine := syncengine.New(apiClient, local, files, syncstate.NewStore(meta),
		syncengine.WithLogger(logger.With("component", "sync")))
	local.OnChange(engine.LocalChangeListener())

	a := &App{
		config:        c,
		logger:        logger,
		authService:   services.NewAuthService(apiClient, db),
		recordService: services.NewRecordService(local, files, engine),
		engine:        engine,
		subscriber:    apiClient,
		db:            db,
		reader:        bufio.NewReader(os.Stdin),
		out:           os.Stdout,
	}
	engine.AddObserver(syncengine.ObserverFunc(a.onSyncStateChanged))
	return a, nil
}

// loadDeviceID returns the id of this installation, creating it on first
// start.
func loadDeviceID(ctx context.Context, meta metadata.Repository) (string, error) {
	v, err := meta.Get(ctx, keyDeviceID)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if len(v) > 0 {
		return string(v), nil
	}
	id := uuid.NewString()
	if err := meta.Set(ctx, keyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}
	return id, nil
}

func (a *App) onSyncStateChanged(s syncengine.Status) {
	if s.LastSyncError != nil && !s.IsBusy {
		a.logger.Warn(context.Background(), "sync finished with error", "error", s.LastSyncError)
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)
	a.Root(ctx)
}

func (a *App) close(ctx context.Context) {
	a.stopWatching()
	if a.engine != nil {
		a.engine.Close()
	}
	if a.authService != nil {
		_ = a.authService.Close(ctx)
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if z, ok := a.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accountID != ""
}

func (a *App) isAuthorized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorized
}

// goOnline activates sync and starts following the server's change
// notifications. It requires a session token, so offline logins stay
// local until the user logs in again.
func (a *App) goOnline(ctx context.Context) {
	a.setMode(ModeOnline)
	if !a.isAuthorized() {
		return
	}
	if err := a.engine.ActivateSync(ctx); err != nil {
		a.logger.Error(ctx, "activate sync", "error", err)
		return
	}
	a.startWatching(ctx)
}

func (a *App) goOffline() {
	a.setMode(ModeOffline)
	a.stopWatching()
	a.engine.DeactivateSync()
}

func (a *App) startWatching(ctx context.Context) {
	if a.subscriber == nil {
		return
	}
	a.mu.Lock()
	if a.unwatch != nil {
		a.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	a.unwatch = cancel
	a.mu.Unlock()

	wake, err := a.subscriber.Subscribe(wctx)
	if err != nil {
		a.logger.Warn(ctx, "subscribe to changes", "error", err)
		a.stopWatching()
		return
	}
	go func() {
		a.engine.Watch(wctx, wake)
		// the stream ended; allow the next status check to reopen it
		a.mu.Lock()
		if a.unwatch != nil && wctx.Err() == nil {
			a.unwatch()
			a.unwatch = nil
		}
		a.mu.Unlock()
	}()
}

func (a *App) stopWatching() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unwatch != nil {
		a.unwatch()
		a.unwatch = nil
	}
}

// StartOnlineStatusWatcher pings the server every interval and activates
// or deactivates sync as connectivity comes and goes.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.authService.Ping(pctx)
	cancel()

	if err != nil {
		if a.mode() == ModeOnline {
			a.logger.Info(ctx, "server unreachable", "error", err)
			a.goOffline()
		}
		return
	}
	if a.mode() != ModeOnline {
		a.goOnline(ctx)
		return
	}
	if a.isAuthorized() {
		// reopens the notification stream after it dropped
		a.startWatching(ctx)
	}
}

var errNotLoggedIn = errors.New("not logged in")
