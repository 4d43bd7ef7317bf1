// Package server initializes and runs the habitsync record store. It
// selects the storage and asset backends from configuration, wires the
// services and serves them over gRPC until shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/habitsync/internal/logging"
	"github.com/dmitrijs2005/habitsync/internal/server/blobstore"
	"github.com/dmitrijs2005/habitsync/internal/server/config"
	"github.com/dmitrijs2005/habitsync/internal/server/realtime"
	"github.com/dmitrijs2005/habitsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/habitsync/internal/server/services"

	gs "github.com/dmitrijs2005/habitsync/internal/server/grpc"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	repomanager   repomanager.RepositoryManager
	dispatcher    *realtime.Dispatcher
	userService   *services.UserService
	recordService *services.RecordService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONSlogLogger(os.Stdout, c.LogLevel)

	rm, err := openStorage(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := openBlobs(ctx, c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	dispatcher := realtime.NewDispatcher()

	return &App{
		config:        c,
		logger:        logger,
		repomanager:   rm,
		dispatcher:    dispatcher,
		userService:   services.NewUserService(rm, c),
		recordService: services.NewRecordService(rm, blobs, dispatcher, logger.With("module", "records")),
	}, nil
}

// openStorage connects to PostgreSQL and migrates it, or falls back to
// process memory when no DSN is configured.
func openStorage(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "No database configured, data is kept in memory")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	rm, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, err
	}
	return rm, nil
}

// openBlobs picks S3 when a bucket is configured, then a local directory,
// then memory.
func openBlobs(ctx context.Context, c *config.Config, logger logging.Logger) (blobstore.Store, error) {
	switch {
	case c.S3Bucket != "":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:          c.S3Bucket,
			Region:          c.S3Region,
			Endpoint:        c.S3BaseEndpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
		})
	case c.BlobDir != "":
		if err := os.MkdirAll(c.BlobDir, 0o700); err != nil {
			return nil, err
		}
		return blobstore.NewDirStore(c.BlobDir), nil
	default:
		logger.Warn(ctx, "No asset storage configured, assets are kept in memory")
		return blobstore.NewMemoryStore(), nil
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx ends or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.recordService, app.dispatcher)
	err := s.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
	}

	if cerr := app.repomanager.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage", "error", cerr)
	}
	app.logger.Info(ctx, "Stopped")
	return err
}
