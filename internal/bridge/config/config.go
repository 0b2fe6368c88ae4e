// Package config loads the Bridge's storage and scheduler configuration
// from the environment. Construction of the Bridge itself only ever takes
// the already-populated structs below (see internal/bridge.New); loading
// them from the environment is ambient tooling for cmd/bridged.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// StorageConfig names the warm and cold storage files the Bridge opens at
// construction. Leaf tags are kept to single words (no underscores) so
// the env loader's blanket "_" -> "." key transform can address them
// without colliding with struct nesting.
type StorageConfig struct {
	WarmStoragePath string `koanf:"warm" validate:"required"`
	ColdStoragePath string `koanf:"cold" validate:"required"`
}

// SchedulerConfig controls the background refresh loop.
type SchedulerConfig struct {
	RefreshInterval time.Duration `koanf:"interval" validate:"required,gt=0"`
	Enabled         bool          `koanf:"enabled"`
}

// LoggingConfig wraps the log level in its own nesting level, the same
// way the single-word-leaf convention handles every other multi-word
// concept below.
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// AppConfig bundles everything cmd/bridged needs to boot.
type AppConfig struct {
	Env       string          `koanf:"env" validate:"required,oneof=dev prod"`
	Log       LoggingConfig   `koanf:"log" validate:"required"`
	Storage   StorageConfig   `koanf:"storage" validate:"required"`
	Scheduler SchedulerConfig `koanf:"scheduler" validate:"required"`
}

// DefaultStorageConfig returns the default warm/cold storage file paths.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		WarmStoragePath: "./var/data/warm_storage.bin",
		ColdStoragePath: "./var/data/cold_storage.db",
	}
}

// DefaultSchedulerConfig returns the default refresh interval and enabled flag.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RefreshInterval: 6 * time.Hour,
		Enabled:         true,
	}
}

// DefaultAppConfig is the full set of defaults applied before environment
// overrides.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Env:       "prod",
		Log:       LoggingConfig{Level: "info"},
		Storage:   DefaultStorageConfig(),
		Scheduler: DefaultSchedulerConfig(),
	}
}

// envLoader loads environment variables with the prefix "BRIDGE_", lower
// cased, stripped of the prefix, and with underscores turned into dots so
// the flat env namespace can address nested struct fields. Exposed as a
// var so tests can override it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BRIDGE_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "BRIDGE_"))
			return strings.ReplaceAll(key, "_", "."), value
		},
	}), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies defaults and runs struct-tag validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
