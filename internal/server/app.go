// Package server wires configuration, storage, services and transports into
// a runnable application.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/events"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/rest"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/taskkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   events.Publisher
	userService *services.UserService
	taskService *services.TaskService
	version     string
}

func NewApp(c *config.Config, version string) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	rm := repomanager.NewPostgresRepositoryManager()

	var pub events.Publisher = events.NopPublisher{}
	if c.KafkaEnabled {
		pub = events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
		logger.Info(context.Background(), "Kafka events enabled", "brokers", c.KafkaBrokers, "topic", c.KafkaTopic)
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		publisher:   pub,
		userService: services.NewUserService(db, rm, c, logger),
		taskService: services.NewTaskService(db, rm, pub, logger),
		version:     version,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	app.logger.Info(ctx, "Applying migrations...")
	return app.repomanager.RunMigrations(ctx, app.db)
}

func (app *App) Close() error {
	return errors.Join(app.publisher.Close(), app.db.Close())
}

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// initSignalHandler cancels the app on the first shutdown signal. The
// returned channel is closed once the handler has stopped listening, which
// happens on a signal or when ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, shutdownSignals...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			app.logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router, err := rest.NewRouter(rest.RouterConfig{
		CORSOrigins:    app.config.CORSOrigins,
		TrustedProxies: app.config.TrustedProxies,
		AuthRateLimit:  app.config.AuthRateLimit,
		AuthRateBurst:  app.config.AuthRateBurst,
		Version:        app.version,
	}, app.userService, app.taskService, app.db, app.logger)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema, then serves HTTP and gRPC until a signal arrives
// or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...", "version", app.version)

	signalsDone := app.initSignalHandler(ctx, cancelFunc)
	defer func() {
		cancelFunc()
		<-signalsDone
	}()

	if err := app.Migrate(ctx); err != nil {
		_ = app.Close()
		return err
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "Stopped")
	return app.Close()
}
