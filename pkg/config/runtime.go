package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/engine/remote"
	"github.com/marmos91/dittodav/pkg/lock"
	lockbadger "github.com/marmos91/dittodav/pkg/lock/badger"
	lockpostgres "github.com/marmos91/dittodav/pkg/lock/postgres"
	"github.com/marmos91/dittodav/pkg/metrics"
	promMetrics "github.com/marmos91/dittodav/pkg/metrics/prometheus"
	"github.com/marmos91/dittodav/pkg/props"
	propsbadger "github.com/marmos91/dittodav/pkg/props/badger"
	"github.com/marmos91/dittodav/pkg/props/sqldb"
	"github.com/marmos91/dittodav/pkg/registry"
)

// Runtime holds the components built from a Config.
type Runtime struct {
	Registry *registry.Registry
	Engine   *engine.Engine

	// DB is the state database, or nil when no component needs one.
	DB *badger.DB

	// closers are SQL-backed stores owned by the runtime.
	closers []io.Closer
}

// Initialize builds the registry, lock manager, property store, copier,
// remote factory and engine described by cfg. m may be nil.
//
// Explicit locks persisted by a previous run are restored before the
// engine is returned.
func Initialize(ctx context.Context, cfg *Config, m *MetricsResult) (*Runtime, error) {
	if m == nil {
		m = &MetricsResult{}
	}

	reg, err := InitializeRegistry(ctx, cfg, m.S3)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Registry: reg}

	if needsDatabase(cfg) {
		db, err := OpenDatabase(cfg.Database)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.DB = db
		if metrics.IsEnabled() {
			promMetrics.RegisterBadgerMetrics(db)
		}
	}

	var copierOpts []copier.Option
	if m.Copier != nil {
		copierOpts = append(copierOpts, copier.WithMetrics(m.Copier))
	}
	cp := copier.New(cfg.Copier, nil, copierOpts...)

	opts := []engine.Option{engine.WithCopier(cp)}
	if m.Engine != nil {
		opts = append(opts, engine.WithMetrics(m.Engine))
	}

	if cfg.Lock.IsEnabled() {
		locks, err := rt.newLockManager(ctx, cfg, m.Lock)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		opts = append(opts, engine.WithLockManager(locks))
	} else {
		logger.Info("Locking disabled")
	}

	properties, err := rt.newPropertyStore(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	opts = append(opts, engine.WithProperties(properties))

	if cfg.Remote.Enabled {
		factory, err := remote.NewFactory(cfg.Remote, cp)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to create remote factory: %w", err)
		}
		opts = append(opts, engine.WithRemoteFactory(factory))
		logger.Info("Remote destinations enabled", "endpoints", len(cfg.Remote.Endpoints))
	}

	rt.Engine = engine.New(reg, cfg.Handler.EngineConfig(), opts...)
	return rt, nil
}

func (rt *Runtime) newLockManager(ctx context.Context, cfg *Config, lm lock.Metrics) (*lock.Manager, error) {
	var opts []lock.Option
	if lm != nil {
		opts = append(opts, lock.WithMetrics(lm))
	}
	if cfg.Lock.Persist {
		persister, err := rt.newLockPersister(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lock.WithPersister(persister))
	}

	locks := lock.NewManager(cfg.Lock.Config, opts...)
	if cfg.Lock.Persist {
		if _, err := locks.Restore(ctx); err != nil {
			return nil, fmt.Errorf("failed to restore locks: %w", err)
		}
	}
	return locks, nil
}

func (rt *Runtime) newLockPersister(ctx context.Context, cfg *Config) (lock.Persister, error) {
	if cfg.Lock.Backend != "postgres" {
		return lockbadger.New(rt.DB), nil
	}

	s, err := lockpostgres.New(ctx, lockpostgres.Config{
		DSN:         cfg.Postgres.DSN(),
		MaxConns:    int32(cfg.Postgres.MaxConns),
		AutoMigrate: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres lock store: %w", err)
	}
	rt.closers = append(rt.closers, s)
	return s, nil
}

func (rt *Runtime) newPropertyStore(cfg *Config) (props.Store, error) {
	var sqlCfg sqldb.Config
	switch cfg.Properties.Type {
	case "badger":
		return propsbadger.New(rt.DB), nil
	case "sqlite":
		sqlCfg = sqldb.Config{Dialect: sqldb.DialectSQLite, Path: cfg.Properties.SQLitePath}
	case "postgres":
		sqlCfg = sqldb.Config{
			Dialect:      sqldb.DialectPostgres,
			DSN:          cfg.Postgres.DSN(),
			MaxOpenConns: cfg.Postgres.MaxConns,
		}
	default:
		return props.NewMemoryStore(), nil
	}

	s, err := sqldb.New(sqlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open property store: %w", err)
	}
	rt.closers = append(rt.closers, s)
	return s, nil
}

// Close closes the stores, the SQL-backed components and the state
// database.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Registry != nil {
		errs = append(errs, rt.Registry.Close())
	}
	for _, c := range rt.closers {
		errs = append(errs, c.Close())
	}
	if rt.DB != nil {
		errs = append(errs, rt.DB.Close())
	}
	return errors.Join(errs...)
}

func needsDatabase(cfg *Config) bool {
	if cfg.Database.Path == "" {
		return false
	}
	badgerLocks := cfg.Lock.IsEnabled() && cfg.Lock.Persist && cfg.Lock.Backend != "postgres"
	return badgerLocks || cfg.Properties.Type == "badger"
}

// OpenDatabase opens the BadgerDB at cfg.Path.
func OpenDatabase(cfg DatabaseConfig) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None). // Records are small JSON documents
		WithBlockCacheSize(cfg.BlockCacheSize.Int64()).
		WithIndexCacheSize(cfg.IndexCacheSize.Int64())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}
	return db, nil
}
