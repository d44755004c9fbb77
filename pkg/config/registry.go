package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/registry"
	stores3 "github.com/marmos91/dittodav/pkg/store/s3"
)

// InitializeRegistry creates a fully configured Registry from the provided
// configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates and registers every store from cfg.Stores
//  2. Adds every share from cfg.Shares, checking its store and root exist
//
// On failure the stores created so far are closed. s3Metrics may be nil.
func InitializeRegistry(ctx context.Context, cfg *Config, s3Metrics stores3.Metrics) (*registry.Registry, error) {
	logger.Debug("Initializing registry from configuration")

	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if len(cfg.Shares) == 0 {
		return nil, fmt.Errorf("no shares configured: at least one share is required")
	}

	reg := registry.NewRegistry()

	if err := registerStores(ctx, reg, cfg, s3Metrics); err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to register stores: %w", err)
	}
	logger.Debug("Registered stores", "count", len(reg.ListStores()))

	if err := addShares(ctx, reg, cfg); err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to add shares: %w", err)
	}
	logger.Debug("Registered shares", "count", reg.CountShares())

	return reg, nil
}

// registerStores creates and registers all configured stores in name
// order.
func registerStores(ctx context.Context, reg *registry.Registry, cfg *Config, s3Metrics stores3.Metrics) error {
	names := make([]string, 0, len(cfg.Stores))
	for name := range cfg.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		storeCfg := cfg.Stores[name]
		logger.Debug("Creating store", "name", name, "type", storeCfg.Type)

		s, err := CreateStore(ctx, storeCfg, s3Metrics)
		if err != nil {
			return fmt.Errorf("failed to create store %q: %w", name, err)
		}

		if err := reg.RegisterStore(name, s); err != nil {
			_ = s.Close()
			return fmt.Errorf("failed to register store %q: %w", name, err)
		}
	}

	return nil
}

// addShares adds all configured shares to the registry.
func addShares(ctx context.Context, reg *registry.Registry, cfg *Config) error {
	for i, shareCfg := range cfg.Shares {
		logger.Debug("Adding share",
			"name", shareCfg.Name, "store", shareCfg.Store, "read_only", shareCfg.ReadOnly)

		if shareCfg.Name == "" {
			return fmt.Errorf("share #%d: name cannot be empty", i+1)
		}
		if shareCfg.Store == "" {
			return fmt.Errorf("share %q: store cannot be empty", shareCfg.Name)
		}

		if err := reg.AddShare(ctx, &registry.ShareConfig{
			Name:     shareCfg.Name,
			Store:    shareCfg.Store,
			Root:     shareCfg.Root,
			ReadOnly: shareCfg.ReadOnly,
		}); err != nil {
			return fmt.Errorf("failed to add share %q: %w", shareCfg.Name, err)
		}
	}

	return nil
}
