package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/twiced-technology-gmbh/housekeep/internal/activity"
	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/store/filestore"
	"github.com/twiced-technology-gmbh/housekeep/internal/store/s3store"
	"github.com/twiced-technology-gmbh/housekeep/internal/store/sqlstore"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
)

// app bundles what a command needs to read and write tasks.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    store.TaskStore
	coord    *syncer.Coordinator
	activity *activity.Log

	closeStore func() error
}

// newLogger returns the diagnostic logger shared by every component.
func newLogger() *log.Logger {
	return log.New(os.Stderr, "housekeep: ", 0)
}

// openApp loads the config and builds the store, queue and coordinator.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	q, err := queue.Open(cfg.QueuePath(), queue.WithLogger(logger))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	actLog := activity.New(filepath.Join(cfg.Dir(), activity.FileName))
	coord := syncer.New(st, q,
		syncer.WithLogger(logger),
		syncer.WithActivityLog(actLog),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		coord:      coord,
		activity:   actLog,
		closeStore: closeStore,
	}, nil
}

// Close releases the store.
func (a *app) Close() {
	if err := a.closeStore(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing store: %v\n", err)
	}
}

// openStore builds the backend selected by store.backend.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.TaskStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Printf("Warning: memory backend keeps nothing after this command exits")
		return store.NewMemory(), noop, nil
	case config.BackendFile:
		return filestore.New(cfg.TasksPath(), filestore.WithLogger(logger)), noop, nil
	case config.BackendSQLite:
		s, err := sqlstore.Open(sqlstore.SQLite, cfg.DatabasePath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendPostgres:
		s, err := sqlstore.Open(sqlstore.Postgres, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, cfg.Store.S3.Profile, cfg.Store.S3.Region)
		if err != nil {
			return nil, nil, err
		}
		return s3store.New(client, cfg.Store.S3.Bucket, cfg.Store.S3.Key), noop, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, cfg.Store.Backend)
}
