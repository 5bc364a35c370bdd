package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/adapters/local"
	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/demo"
	http_controllers "github.com/lingoplay/core/internal/http"
	"github.com/lingoplay/core/internal/logging"
	"github.com/lingoplay/core/internal/migration"
	"github.com/lingoplay/core/internal/scheduler"
	"github.com/lingoplay/core/internal/sidestore"
	"github.com/lingoplay/core/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the handles opened at startup. They are passed explicitly to
// everything that needs them and closed once, at shutdown.
type App struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Store     *sidestore.Store
	Migration *migration.Adapter
	DB        *database.Database
	Adapter   *local.Adapter

	// MigrationResult is nil when no bundle was found
	MigrationResult *migration.Result
}

// OpenStore opens the side store and the migration adapter bound to it.
func OpenStore(cfg *config.Config, log logrus.FieldLogger) (*sidestore.Store, *migration.Adapter, error) {
	store, err := sidestore.New(sidestore.Config{
		DatabasePath: cfg.SideStore.Path,
		Namespace:    cfg.SideStore.Namespace,
	})
	if err != nil {
		return nil, nil, err
	}

	adapter := migration.New(
		cfg.Database.Path,
		migration.FileBundle{Path: cfg.Database.BundlePath},
		store,
		migration.WithLogger(log.WithField("component", "migration")),
		migration.WithSQLLogLevel(logging.SQLLevel(cfg.Database.LogSQL)),
		migration.WithFlush(flushQueuedAttempts(cfg, log)),
	)
	return store, adapter, nil
}

// flushQueuedAttempts writes attempts still sitting in the task queue into
// the database about to be replaced. Their exercise ids belong to that
// database.
func flushQueuedAttempts(cfg *config.Config, log logrus.FieldLogger) migration.FlushFunc {
	return func(ctx context.Context, db *database.Database) error {
		if _, err := os.Stat(tasks.TasksDatabasePath(cfg.SideStore.Path)); err != nil {
			return nil
		}
		taskClient, err := tasks.NewClient(cfg.SideStore.Path, tasks.Config{}, log)
		if err != nil {
			return err
		}
		defer taskClient.Close()

		_, err = taskClient.DrainAttempts(ctx, progress.NewRepository(db.DB))
		return err
	}
}

// Open runs the migration adapter and then opens the application's
// database handle. Without a bundle on disk the migration step is skipped
// and the database is opened (and created if needed) as is.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	store, migrator, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Log: log, Store: store, Migration: migrator}

	if _, statErr := os.Stat(cfg.Database.BundlePath); statErr == nil {
		result, err := migrator.Run(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		app.MigrationResult = result
		log.WithFields(logrus.Fields{
			"action": result.Action,
			"from":   result.FromVersion,
			"to":     result.ToVersion,
		}).Info("database ready")
	} else {
		log.WithField("bundle", cfg.Database.BundlePath).Warn("no bundled database found, skipping migration")
	}

	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogLevel(logging.SQLLevel(cfg.Database.LogSQL)))
	if err != nil {
		store.Close()
		return nil, err
	}
	app.DB = db
	app.Adapter = local.New(db, local.WithDefaultUserName(cfg.User.DefaultName))
	return app, nil
}

// Close releases the database and side store handles.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// StatsSnapshotter builds the snapshotter writing into the side store.
func (a *App) StatsSnapshotter() *tasks.StatsSnapshotter {
	return tasks.NewStatsSnapshotter(
		users.NewRepository(a.DB.DB),
		progress.NewRepository(a.DB.DB),
		a.Store,
		a.Log.WithField("component", "snapshot"),
	)
}

// StartTasks opens the task queue next to the side store and registers the
// attempt and snapshot queues. The returned stop function waits for
// running tasks and closes the queue.
func (a *App) StartTasks(snapshotter *tasks.StatsSnapshotter) (*tasks.Client, ShutdownFunc, error) {
	cfg := a.Config.Tasks
	taskClient, err := tasks.NewClient(a.Config.SideStore.Path, tasks.Config{
		Workers:         cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
	}, a.Log)
	if err != nil {
		return nil, nil, err
	}

	taskClient.Register(
		tasks.NewRecordAttemptQueue(progress.NewRepository(a.DB.DB)),
		tasks.NewSnapshotStatsQueue(snapshotter),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go taskClient.Start(ctx)

	stop := func(shutdownCtx context.Context) {
		taskClient.Stop(shutdownCtx)
		cancel()
		if err := taskClient.Close(); err != nil {
			a.Log.WithError(err).Warn("error closing task client")
		}
	}
	return taskClient, stop, nil
}

// snapshotJob queues the snapshot when a task queue runs, and runs it
// inline otherwise.
func snapshotJob(taskClient *tasks.Client, snapshotter *tasks.StatsSnapshotter) scheduler.SnapshotJob {
	if taskClient != nil {
		return func(ctx context.Context) error {
			_, err := taskClient.EnqueueSnapshot()
			return err
		}
	}
	return func(ctx context.Context) error {
		_, err := snapshotter.Run(ctx)
		return err
	}
}

// NewRouter builds the broker over the app's handles.
func (a *App) NewRouter(taskClient *tasks.Client, version string) *gin.Engine {
	routerCfg := http_controllers.RouterConfig{
		Adapter:        a.Adapter,
		Database:       a.DB,
		Migration:      a.Migration,
		DemoMiddleware: demo.NewMiddleware(a.Config.Demo.Enabled),
		Logger:         a.Log.WithField("component", "broker"),
		Version:        version,
		LoopbackOnly:   http_controllers.IsLoopbackHost(a.Config.HTTP.Host),
	}
	if taskClient != nil {
		routerCfg.AttemptQueue = taskClient
	}
	return http_controllers.NewRouter(routerCfg)
}

func Serve(router *gin.Engine, cfg *config.Config, log logrus.FieldLogger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting broker")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}
	log.WithField("timeout", timeout).Info("shutting down broker")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before the task queue goes away
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info("broker exiting")
	return nil
}

func Run(cfg *config.Config, log *logrus.Logger, version string) error {
	log.WithField("version", version).Info("starting lingoplay")
	if cfg.Demo.Enabled {
		log.Info("demo mode enabled, write operations will be blocked")
	}

	app, err := Open(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("error closing database")
		}
	}()

	snapshotter := app.StatsSnapshotter()

	var taskClient *tasks.Client
	var stopTasks ShutdownFunc
	if cfg.Tasks.Enabled {
		taskClient, stopTasks, err = app.StartTasks(snapshotter)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
	}

	var snapshots *scheduler.StatsSnapshotScheduler
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if cfg.Snapshot.Enabled {
		snapshots = scheduler.NewStatsSnapshotScheduler(cfg.Snapshot.Schedule, snapshotJob(taskClient, snapshotter), log)
		if err := snapshots.Start(schedulerCtx); err != nil {
			if stopTasks != nil {
				stopTasks(context.Background())
			}
			return err
		}
		log.WithField("schedule", scheduler.GetCronDescription(cfg.Snapshot.Schedule)).Info("stats snapshots scheduled")
	}

	router := app.NewRouter(taskClient, version)

	onShutdown := func(ctx context.Context) {
		if snapshots != nil {
			snapshots.Stop()
		}
		if stopTasks != nil {
			stopTasks(ctx)
		}
	}

	return Serve(router, cfg, log, onShutdown)
}
