// Package server wires the vault components together and runs them until
// the process is asked to stop.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/jobs"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/rest"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/vaultkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	publisher   events.Publisher
	cache       io.Closer
	accounts    *services.AccountService
	files       *services.FileGateway
	maintenance *services.MaintenanceService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	repos, err := OpenRepositories(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	blobs, err := OpenBlobStore(ctx, c)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	resolver, cache := NewLogoResolver(ctx, c, logger)
	pub := OpenPublisher(ctx, c, logger)

	return &App{
		config:      c,
		logger:      logger,
		repos:       repos,
		publisher:   pub,
		cache:       cache,
		accounts:    services.NewAccountService(repos, blobs, resolver, pub, logger, c.MaxUploadBytes),
		files:       services.NewFileGateway(repos, blobs, logger),
		maintenance: services.NewMaintenanceService(repos, blobs, resolver, pub, logger),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.EndpointAddrHTTP, app.logger, app.accounts, app.files, app.maintenance,
		app.config.SecretKey, app.config.MaxUploadBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives, ctx is cancelled or one of
// the servers fails, then releases all resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	logoJob := jobs.NewLogoRefreshJob(app.maintenance, app.logger, app.config.LogoRefreshInterval)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		logoJob.Start(ctx)
	}()

	<-ctx.Done()
	logoJob.Stop()
	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if err := app.publisher.Close(); err != nil {
		app.logger.Warn(ctx, "close publisher", "error", err)
	}
	if err := app.cache.Close(); err != nil {
		app.logger.Warn(ctx, "close logo cache", "error", err)
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Warn(ctx, "close database", "error", err)
	}
}
