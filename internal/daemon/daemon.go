package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"docflow/internal/api"
	"docflow/internal/config"
	"docflow/internal/driver"
	"docflow/internal/logging"
	"docflow/internal/notifications"
	"docflow/internal/pipeline"
	"docflow/internal/queue"
	"docflow/internal/results"
	"docflow/internal/worker"
)

// Daemon ties the worker loop, the HTTP API, and the maintenance
// schedule into one lifecycle, with flock-based locking so only one
// instance consumes the queue.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	worker   *worker.Worker
	notifier notifications.Service

	apiServer   *apiServer
	maintenance *maintenance

	lockPath string
	lock     *flock.Flock

	running    atomic.Bool
	cancel     context.CancelFunc
	workerDone chan struct{}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	notifier := notifications.NewService(cfg)
	executor := pipeline.NewExecutor(pipeline.DefaultRegistry(), cfg.Paths.ReportDir, logger)
	sender := results.NewSender(cfg, logger)
	newDriver := func() (driver.Driver, error) { return driver.NewClient(cfg) }
	w := worker.New(cfg, store, executor, newDriver, sender, notifier, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   w,
		notifier: notifier,
		lockPath: filepath.Join(cfg.Paths.DataDir, "docflowd.lock"),
	}
	d.lock = flock.New(d.lockPath)

	server, err := newAPIServer(cfg, api.NewQueueService(store), logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = server

	if cfg.Maintenance.Enabled {
		m, err := newMaintenance(cfg, store, d.logger)
		if err != nil {
			return nil, err
		}
		d.maintenance = m
	}

	return d, nil
}

// Start acquires the instance lock and launches the worker, API
// server, and maintenance schedule.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another docflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	if d.maintenance != nil {
		d.maintenance.start()
	}

	d.workerDone = make(chan struct{})
	go func() {
		defer close(d.workerDone)
		if err := d.worker.Run(runCtx); err != nil {
			d.logger.Error("worker stopped with error", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("docflow daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the instance lock.
// The worker finishes its current task before stopping.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.workerDone != nil {
		<-d.workerDone
		d.workerDone = nil
	}
	if d.maintenance != nil {
		d.maintenance.stop()
	}
	if d.apiServer != nil {
		d.apiServer.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("docflow daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
