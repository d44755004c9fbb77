package config

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittodav/pkg/store"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that can't be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Shares) == 0 {
		return fmt.Errorf("shares: at least one share must be configured")
	}

	names := make(map[string]bool)
	for i, share := range cfg.Shares {
		prefix := store.Clean(share.Name)
		if names[prefix] {
			return fmt.Errorf("shares[%d]: duplicate share name %q", i, share.Name)
		}
		names[prefix] = true

		if _, ok := cfg.Stores[share.Store]; !ok {
			return fmt.Errorf("shares[%d]: unknown store %q", i, share.Store)
		}
	}

	// Sorted for a stable error when several stores are invalid.
	storeNames := make([]string, 0, len(cfg.Stores))
	for name := range cfg.Stores {
		storeNames = append(storeNames, name)
	}
	sort.Strings(storeNames)
	for _, name := range storeNames {
		if err := validateStore(cfg.Stores[name]); err != nil {
			return fmt.Errorf("stores.%s: %w", name, err)
		}
	}

	if cfg.Copier.MaxSize > 0 && cfg.Copier.InitialSize > cfg.Copier.MaxSize {
		return fmt.Errorf("copier: initial_buffer (%s) exceeds max_buffer (%s)",
			cfg.Copier.InitialSize, cfg.Copier.MaxSize)
	}

	if cfg.Database.Path == "" {
		if cfg.Properties.Type == "badger" {
			return fmt.Errorf("properties: type badger requires database.path")
		}
		if cfg.Lock.Persist && cfg.Lock.Backend != "postgres" {
			return fmt.Errorf("lock: persist with the badger backend requires database.path")
		}
	}

	if !cfg.Postgres.IsConfigured() {
		if cfg.Properties.Type == "postgres" {
			return fmt.Errorf("properties: type postgres requires postgres.host and postgres.database")
		}
		if cfg.Lock.Persist && cfg.Lock.Backend == "postgres" {
			return fmt.Errorf("lock: the postgres backend requires postgres.host and postgres.database")
		}
	}

	if cfg.Remote.Enabled && len(cfg.Remote.Endpoints) == 0 {
		return fmt.Errorf("remote: enabled but no endpoints configured")
	}

	return nil
}

func validateStore(cfg StoreConfig) error {
	switch cfg.Type {
	case "filesystem":
		if cfg.Filesystem.Path == "" {
			return fmt.Errorf("filesystem store requires path to be set")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("S3 store requires bucket to be set")
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
