package config

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/dittodav/pkg/store"
	storefs "github.com/marmos91/dittodav/pkg/store/fs"
	"github.com/marmos91/dittodav/pkg/store/memory"
	stores3 "github.com/marmos91/dittodav/pkg/store/s3"
)

// CreateStore creates a store instance from configuration. s3Metrics may
// be nil.
func CreateStore(ctx context.Context, cfg StoreConfig, s3Metrics stores3.Metrics) (store.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "filesystem":
		return createFSStore(cfg.Filesystem)
	case "s3":
		return createS3Store(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}
}

// createFSStore creates a filesystem-backed store.
func createFSStore(cfg FilesystemStoreConfig) (store.Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("filesystem store requires path to be set")
	}

	fsCfg := storefs.DefaultConfig(cfg.Path)
	if cfg.CreateDir != nil {
		fsCfg.CreateDir = *cfg.CreateDir
	}
	if cfg.DirMode != 0 {
		fsCfg.DirMode = os.FileMode(cfg.DirMode)
	}
	if cfg.FileMode != 0 {
		fsCfg.FileMode = os.FileMode(cfg.FileMode)
	}

	return storefs.New(fsCfg)
}

// createS3Store creates an S3-backed store.
func createS3Store(ctx context.Context, cfg S3StoreConfig, m stores3.Metrics) (store.Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 store requires bucket to be set")
	}

	s3Cfg := stores3.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		KeyPrefix:       cfg.KeyPrefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
		ForcePathStyle:  cfg.ForcePathStyle,
	}

	var opts []stores3.Option
	if m != nil {
		opts = append(opts, stores3.WithMetrics(m))
	}
	return stores3.NewFromConfig(ctx, s3Cfg, opts...)
}
