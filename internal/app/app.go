// Package app connects the stores shared by the practice binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alkime/practice/internal/catalog"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/pending"
	"github.com/alkime/practice/internal/storage"
	"github.com/alkime/practice/internal/workdir"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// App holds the stores every command shares.
type App struct {
	Config   *config.Config
	Objects  storage.ObjectStore
	Store    *catalog.GormStore
	Notifier catalog.Notifier
	Queue    *pending.Queue

	db    *gorm.DB
	redis *redis.Client
}

// Open connects the object store, the audios table and the pending queue
// described by cfg.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := workdir.Prep(); err != nil {
		return nil, fmt.Errorf("failed to prepare working directory: %w", err)
	}

	a := &App{Config: cfg} //nolint:exhaustruct // filled below

	objects, err := openObjects(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	a.Objects = objects

	a.db, err = catalog.OpenGorm(catalog.DBConfig{
		DSN:             cfg.DB.DSN,
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Name:            cfg.DB.Name,
		MaxIdleConns:    2,
		MaxOpenConns:    4,
		ConnMaxLifetime: 0,
		Debug:           cfg.DB.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audios database: %w", err)
	}

	a.Store, err = catalog.NewGormStore(a.db, cfg.DB.SongColumns)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open audios table: %w", err)
	}

	kv, err := a.openKV()
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.redis != nil {
		a.Notifier = catalog.NewRedisNotifier(a.redis)
	} else {
		a.Notifier = catalog.NewLocalNotifier()
	}

	up := pending.NewUploader(a.Objects, a.Store, a.Notifier)
	policy := pending.Policy{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		InitialDelay: cfg.Queue.InitialDelay,
		MaxDelay:     cfg.Queue.MaxDelay,
		Multiplier:   cfg.Queue.Multiplier,
	}

	a.Queue = pending.NewQueue(kv, up, policy, pending.WithPreparer(up))

	return a, nil
}

func openObjects(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Backend == "minio" {
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:      cfg.Endpoint,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Region:        cfg.Region,
			UseSSL:        cfg.UseSSL,
			Bucket:        cfg.Bucket,
			PublicBaseURL: "",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open object storage: %w", err)
		}

		return store, nil
	}

	root, err := MediaRoot(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewLocalStore(root, cfg.Bucket, cfg.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	return store, nil
}

// MediaRoot is where the local backend keeps objects, shared with the media
// server.
func MediaRoot(cfg config.StorageConfig) (string, error) {
	root, err := workdir.Default(cfg.Root, workdir.MediaDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media root: %w", err)
	}

	return root, nil
}

func (a *App) openKV() (pending.KV, error) {
	if a.Config.Queue.Backend == "redis" {
		//nolint:exhaustruct // defaults for pool and timeouts
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.Config.Queue.RedisAddr,
			Password: a.Config.Queue.RedisPassword,
			DB:       a.Config.Queue.RedisDB,
		})

		return pending.NewRedisKV(a.redis, ""), nil
	}

	path, err := workdir.Default(a.Config.Queue.File, workdir.QueueFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve queue file: %w", err)
	}

	return pending.NewFileKV(path), nil
}

func (a *App) Admin() catalog.Admin {
	return catalog.Admin{Objects: a.Objects, Store: a.Store}
}

// Close releases the database and redis connections.
func (a *App) Close() {
	var errs []error

	if a.db != nil {
		errs = append(errs, catalog.CloseGorm(a.db))
	}

	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}

	if err := errors.Join(errs...); err != nil {
		slog.Warn("failed to close connections", "error", err)
	}
}
