// Package sqldb persists dead properties and entity tags through GORM, on
// SQLite or PostgreSQL.
package sqldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/props"
)

// propertyRecord is one node's row. Properties holds the JSON-encoded
// name -> value map.
type propertyRecord struct {
	StoreID    string `gorm:"primaryKey;size:255"`
	Path       string `gorm:"primaryKey;size:2048"`
	ETag       string `gorm:"size:64"`
	Properties string `gorm:"type:text"`
	UpdatedAt  time.Time
}

func (propertyRecord) TableName() string {
	return "dav_properties"
}

// Store implements props.Store with GORM.
//
// Every read-modify-write runs in one transaction, so concurrent updates
// of the same node serialize in the database.
type Store struct {
	db *gorm.DB
}

var _ props.Store = (*Store)(nil)

// New opens the database described by cfg and creates the schema.
func New(cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid property store configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// WAL lets readers proceed during a write; busy_timeout makes the
		// single writer wait instead of failing with SQLITE_BUSY.
		dialector = sqlite.Open(cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	case DialectPostgres:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to property database: %w", err)
	}

	if cfg.Dialect == DialectPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := db.AutoMigrate(&propertyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate property schema: %w", err)
	}

	logger.Info("SQL property store ready", "dialect", cfg.Dialect)
	return &Store{db: db}, nil
}

func getRecord(tx *gorm.DB, key props.Key) (*props.Record, error) {
	var row propertyRecord
	err := tx.Where("store_id = ? AND path = ?", key.StoreID, key.Path).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &props.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	r := &props.Record{ETag: row.ETag}
	if row.Properties != "" {
		if err := json.Unmarshal([]byte(row.Properties), &r.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties of %s: %w", key.Path, err)
		}
	}
	return r, nil
}

func putRecord(tx *gorm.DB, key props.Key, r *props.Record) error {
	row := propertyRecord{StoreID: key.StoreID, Path: key.Path, ETag: r.ETag}
	if len(r.Properties) > 0 {
		data, err := json.Marshal(r.Properties)
		if err != nil {
			return fmt.Errorf("failed to marshal properties of %s: %w", key.Path, err)
		}
		row.Properties = string(data)
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func deleteRecord(tx *gorm.DB, key props.Key) error {
	return tx.Where("store_id = ? AND path = ?", key.StoreID, key.Path).Delete(&propertyRecord{}).Error
}

func (s *Store) update(ctx context.Context, key props.Key, fn func(r *props.Record)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := getRecord(tx, key)
		if err != nil {
			return err
		}
		fn(r)
		return putRecord(tx, key, r)
	})
}

func (s *Store) Get(ctx context.Context, key props.Key) (map[string]string, error) {
	r, err := getRecord(s.db.WithContext(ctx), key)
	if err != nil {
		return nil, err
	}
	if r.Properties == nil {
		return map[string]string{}, nil
	}
	return r.Properties, nil
}

func (s *Store) Set(ctx context.Context, key props.Key, name, value string) error {
	return s.update(ctx, key, func(r *props.Record) {
		if r.Properties == nil {
			r.Properties = make(map[string]string)
		}
		r.Properties[name] = value
	})
}

func (s *Store) Remove(ctx context.Context, key props.Key, name string) error {
	return s.update(ctx, key, func(r *props.Record) {
		delete(r.Properties, name)
	})
}

func (s *Store) Copy(ctx context.Context, src, dst props.Key) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := getRecord(tx, src)
		if err != nil {
			return err
		}
		r.ETag = props.NewETag()
		return putRecord(tx, dst, r)
	})
}

func (s *Store) Move(ctx context.Context, src, dst props.Key) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := getRecord(tx, src)
		if err != nil {
			return err
		}
		if err := deleteRecord(tx, src); err != nil {
			return err
		}
		r.ETag = props.NewETag()
		return putRecord(tx, dst, r)
	})
}

func (s *Store) Delete(ctx context.Context, key props.Key) error {
	return deleteRecord(s.db.WithContext(ctx), key)
}

func (s *Store) ETag(ctx context.Context, key props.Key) (string, error) {
	r, err := getRecord(s.db.WithContext(ctx), key)
	if err != nil {
		return "", err
	}
	return r.ETag, nil
}

func (s *Store) RefreshETag(ctx context.Context, key props.Key) (string, error) {
	var etag string
	err := s.update(ctx, key, func(r *props.Record) {
		r.ETag = props.NewETag()
		etag = r.ETag
	})
	return etag, err
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
