package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays the
// bare (unprefixed) environment variables — STORAGE_DIR, REDIS_HOST,
// EMBEDDING_BASE_PATH, BATCH_SIZE, and so on. Every one of those names
// already lowercases to its matching struct tag, so a single
// case-folding transform is enough; unrelated environment variables
// lowercase to keys the config schema doesn't recognize and are dropped
// silently during Unmarshal.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: accessing %s: %w", path, err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.ConcurrentOperations <= 0 {
		return fmt.Errorf("concurrent_operations must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.ResyncConcurrency <= 0 {
		return fmt.Errorf("resync_concurrency must be positive")
	}
	if c.ResyncLargeConcurrency <= 0 {
		return fmt.Errorf("resync_large_concurrency must be positive")
	}
	switch c.MultimodalProvider {
	case "", MultimodalNone, MultimodalGeneric:
	default:
		return fmt.Errorf("invalid multimodal_provider %q", c.MultimodalProvider)
	}
	if c.MultimodalProvider == MultimodalGeneric && c.MultimodalBasePath == "" {
		return fmt.Errorf("multimodal_base_path is required when multimodal_provider is %q", MultimodalGeneric)
	}
	return nil
}

// RedisConfigured reports whether a Redis endpoint was provided. Absence
// degrades the metadata store to disk-only.
func (c *Config) RedisConfigured() bool {
	return c.RedisHost != ""
}

// MultimodalConfigured reports whether queries should route through the
// multimodal embedder (provider != none and base URL non-empty).
func (c *Config) MultimodalConfigured() bool {
	return c.MultimodalProvider != MultimodalNone && c.MultimodalProvider != "" && c.MultimodalBasePath != ""
}
