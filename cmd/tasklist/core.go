package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"tasklist/app"
	"tasklist/clock"
	"tasklist/config"
	"tasklist/model"
	"tasklist/reminder"
	"tasklist/store"
)

// core is the wired core: backend, adapter, service and scheduler.
type core struct {
	cfg       *config.Config
	log       *zap.Logger
	kv        store.KV
	files     *store.FileKV
	adapter   *store.Adapter
	svc       *app.Service
	scheduler *reminder.Scheduler
	// loadErr explains why stored tasks were dropped or recovered, if they were.
	loadErr error
}

func openKV(cfg *config.Config) (store.KV, *store.FileKV, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return store.NewMemoryKV(), nil, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		kv, err := store.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "tasklist.db"))
		if err != nil {
			return nil, nil, err
		}
		return kv, nil, nil
	default:
		kv, err := store.NewFileKV(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil
	}
}

func openCore(cfg *config.Config, log *zap.Logger, clk clock.Clock, notify func(model.Notification)) (*core, error) {
	kv, files, err := openKV(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	adapter := store.NewAdapter(kv,
		store.WithKey(cfg.Storage.Key),
		store.WithViewKey(cfg.Storage.ViewKey),
		store.WithLogger(log),
	)
	tasks, loadErr := adapter.Load()
	if loadErr != nil {
		log.Warn("stored tasks were not loaded as is", zap.Error(loadErr))
	}

	svc := app.NewService(tasks, app.Options{
		Clock:     clk,
		Persister: adapter,
		Logger:    log,
	})
	sch := reminder.New(clk, svc, notify, log)
	svc.SetScheduler(sch)

	log.Debug("store opened",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("dir", cfg.Storage.DataDir),
		zap.Int("tasks", len(tasks)))

	return &core{
		cfg:       cfg,
		log:       log,
		kv:        kv,
		files:     files,
		adapter:   adapter,
		svc:       svc,
		scheduler: sch,
		loadErr:   loadErr,
	}, nil
}

// watchExternalChanges reloads the task list when another process rewrites
// it. It blocks until ctx is done and is a no-op for non-file backends.
func (c *core) watchExternalChanges(ctx context.Context) error {
	if c.files == nil || !c.cfg.Storage.Watch {
		<-ctx.Done()
		return nil
	}
	return c.files.Watch(ctx, c.adapter.Key(), func(data []byte) {
		tasks, err := c.adapter.Decode(data)
		if err != nil {
			c.log.Warn("ignoring unreadable external change", zap.Error(err))
			return
		}
		c.svc.Replace(tasks)
	})
}

func (c *core) Close() error {
	c.scheduler.Stop()
	return c.kv.Close()
}
