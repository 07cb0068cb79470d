package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/config"
	"github.com/nick-dorsch/swimlane/internal/db"
	"github.com/nick-dorsch/swimlane/internal/local"
	"github.com/nick-dorsch/swimlane/internal/logging"
	"github.com/nick-dorsch/swimlane/internal/metrics"
	"github.com/nick-dorsch/swimlane/internal/notify"
	"github.com/nick-dorsch/swimlane/internal/remote"
)

// app holds what every command needs once flags are parsed.
type app struct {
	configPath string
	mode       string
	out        io.Writer

	cfg      *config.Config
	logger   *zap.Logger
	logFile  *os.File
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.mode != "" {
		cfg.Mode = a.mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = f
		a.logger, err = logging.NewWithWriter(cfg.Log.Level, cfg.Log.Format, f)
		if err != nil {
			return err
		}
	} else {
		a.logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

// quiet drops stderr logging so it cannot draw over a full-screen UI.
func (a *app) quiet() {
	if a.logFile == nil {
		a.logger = zap.NewNop()
	}
}

func (a *app) sync() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	database, err := db.Connect(a.cfg.Store.Driver, a.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, nil
}

// redisClient returns nil when no configured component talks to Redis.
func (a *app) redisClient() *redis.Client {
	if !a.cfg.UsesRedis() {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
}

// openBoard starts the session selected by the configured mode. The returned
// function stops it and releases every connection it opened.
func (a *app) openBoard(ctx context.Context) (board.Controller, func(), error) {
	rc := a.redisClient()
	closeRedis := func() {
		if rc != nil {
			rc.Close()
		}
	}

	var (
		ctrl    board.Controller
		cleanup func()
		err     error
	)
	if a.cfg.Mode == config.ModeLocal {
		ctrl, cleanup, err = a.openLocal(ctx, rc)
	} else {
		ctrl, cleanup, err = a.openRemote(ctx, rc)
	}
	if err != nil {
		closeRedis()
		return nil, nil, err
	}
	return ctrl, func() {
		cleanup()
		closeRedis()
	}, nil
}

func (a *app) openLocal(ctx context.Context, rc *redis.Client) (board.Controller, func(), error) {
	var store local.SnapshotStore
	switch a.cfg.Local.Backend {
	case config.LocalRedis:
		store = local.NewRedisStore(rc, a.cfg.Local.Key)
	default:
		store = local.NewFileStore(a.cfg.Local.Path)
	}

	session := local.NewSession(store,
		local.WithLogger(a.logger.Named("local")),
		local.WithMetrics(a.metrics),
	)
	session.Start(ctx)

	a.logger.Info("local board ready", zap.String("backend", a.cfg.Local.Backend))
	return session, func() {}, nil
}

func (a *app) openRemote(ctx context.Context, rc *redis.Client) (board.Controller, func(), error) {
	database, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}

	var sub remote.Subscriber
	switch a.cfg.Notify.Backend {
	case config.NotifyRedis:
		notifier := notify.NewRedisNotifier(rc, a.cfg.Notify.Channel, source(), a.logger.Named("notify"))
		database.OnChange(func(ctx context.Context) {
			if err := notifier.Publish(ctx); err != nil {
				a.logger.Warn("failed to publish change", zap.Error(err))
			}
		})
		sub = notifier
	default:
		broker := notify.NewBroker()
		database.OnChange(func(ctx context.Context) { _ = broker.Publish(ctx) })
		sub = broker
	}

	if a.cfg.Store.Mirror != "" {
		database.EnableAutoSnapshot(local.NewFileStore(a.cfg.Store.Mirror), func(err error) {
			a.metrics.SnapshotSave(err)
			a.logger.Warn("failed to mirror board", zap.Error(err))
		})
	}

	session := remote.NewSession(database, sub,
		remote.WithLogger(a.logger.Named("remote")),
		remote.WithMetrics(a.metrics),
		remote.WithWriteTimeout(a.cfg.WriteTimeout),
	)

	closeAll := func() {
		session.Close()
		session.Wait()
		database.Close()
	}

	if err := session.Start(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("failed to load board: %w", err)
	}

	a.logger.Info("remote board ready",
		zap.String("driver", a.cfg.Store.Driver),
		zap.String("notify", a.cfg.Notify.Backend),
	)
	return session, closeAll, nil
}

// source identifies this process in change notifications.
func source() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
