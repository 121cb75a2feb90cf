// Package config loads UIdex configuration from yaml files and
// UIDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete UIdex configuration. Precedence, lowest to
// highest: defaults, user config (~/.config/uidex/config.yaml), project
// config (.uidex.yaml), UIDEX_* environment variables.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Registry   RegistryConfig   `yaml:"registry" json:"registry"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// RegistryConfig configures the outbound policy shared by the npm
// registry client and the storybook parser.
type RegistryConfig struct {
	// BaseURL points at the npm registry. Default: https://registry.npmjs.org
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Timeout is the per-call upstream timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries bounds retry attempts for retryable upstream failures.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// MaxConcurrent bounds in-flight upstream calls.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// RatePerSecond is the outbound request rate limit.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second"`
}

// CacheConfig configures the fetch cache.
type CacheConfig struct {
	// Backend selects the cache store: "memory" (default), "redis",
	// or "none" to disable caching.
	Backend string `yaml:"backend" json:"backend"`

	// MaxEntries bounds the in-memory LRU.
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// RedisAddr is the redis server address (host:port).
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`

	// RedisPassword authenticates against redis. Prefer the
	// UIDEX_REDIS_PASSWORD env var over putting this in a file.
	RedisPassword string `yaml:"redis_password" json:"-"`

	// RedisDB selects the redis database number.
	RedisDB int `yaml:"redis_db" json:"redis_db"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "static" (default, offline) or
	// "openai" (any OpenAI-compatible /embeddings endpoint).
	Provider string `yaml:"provider" json:"provider"`

	// Model names the embedding model for the openai provider.
	Model string `yaml:"model" json:"model"`

	// BaseURL overrides the provider endpoint (local gateways, proxies).
	BaseURL string `yaml:"base_url" json:"base_url"`

	// APIKey authenticates against the provider. Prefer the
	// UIDEX_EMBED_API_KEY env var over putting this in a file.
	APIKey string `yaml:"api_key" json:"-"`

	// Dimensions is the embedding vector width. Zero means the
	// provider default.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// CacheSize bounds the embedding LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// Backend selects the store: "memory" (default, offline) or "qdrant".
	Backend string `yaml:"backend" json:"backend"`

	// QdrantAddr is the qdrant gRPC address (host:port).
	QdrantAddr string `yaml:"qdrant_addr" json:"qdrant_addr"`

	// Collection names the qdrant collection.
	Collection string `yaml:"collection" json:"collection"`

	// SnapshotPath persists the memory backend between runs.
	// Empty disables persistence.
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`
}

// SearchConfig configures search limits.
type SearchConfig struct {
	// DefaultTopK is the result count when the caller does not ask.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// MaxTopK is the hard upper bound on requested result counts.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
}

// IndexConfig configures the indexing pipeline.
type IndexConfig struct {
	// MaxConcurrent bounds parallel embed+upsert work in a batch.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`
}

// ServerConfig configures the MCP server and logging.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with the defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Registry: RegistryConfig{
			BaseURL:       "https://registry.npmjs.org",
			Timeout:       30 * time.Second,
			MaxRetries:    5,
			MaxConcurrent: 8,
			RatePerSecond: 10,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 4096,
			RedisAddr:  "localhost:6379",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			Model:     "text-embedding-3-small",
			CacheSize: 4096,
		},
		Store: StoreConfig{
			Backend:    "memory",
			QdrantAddr: "localhost:6334",
			Collection: "ui_components",
		},
		Search: SearchConfig{
			DefaultTopK: 10,
			MaxTopK:     50,
		},
		Index: IndexConfig{
			MaxConcurrent: 8,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file path,
// following the XDG Base Directory convention:
//   - $XDG_CONFIG_HOME/uidex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/uidex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "uidex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "uidex", "config.yaml")
	}
	return filepath.Join(home, ".config", "uidex", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for a project directory. It applies,
// in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/uidex/config.yaml)
//  3. Project config (.uidex.yaml in dir)
//  4. UIDEX_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir loads .uidex.yaml or .uidex.yml from dir if present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".uidex.yaml", ".uidex.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	// No project config is fine.
	return nil
}

// loadYAML merges one yaml file over the current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Registry.BaseURL != "" {
		c.Registry.BaseURL = other.Registry.BaseURL
	}
	if other.Registry.Timeout != 0 {
		c.Registry.Timeout = other.Registry.Timeout
	}
	if other.Registry.MaxRetries != 0 {
		c.Registry.MaxRetries = other.Registry.MaxRetries
	}
	if other.Registry.MaxConcurrent != 0 {
		c.Registry.MaxConcurrent = other.Registry.MaxConcurrent
	}
	if other.Registry.RatePerSecond != 0 {
		c.Registry.RatePerSecond = other.Registry.RatePerSecond
	}

	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}
	if other.Cache.RedisAddr != "" {
		c.Cache.RedisAddr = other.Cache.RedisAddr
	}
	if other.Cache.RedisPassword != "" {
		c.Cache.RedisPassword = other.Cache.RedisPassword
	}
	if other.Cache.RedisDB != 0 {
		c.Cache.RedisDB = other.Cache.RedisDB
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.BaseURL != "" {
		c.Embeddings.BaseURL = other.Embeddings.BaseURL
	}
	if other.Embeddings.APIKey != "" {
		c.Embeddings.APIKey = other.Embeddings.APIKey
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.QdrantAddr != "" {
		c.Store.QdrantAddr = other.Store.QdrantAddr
	}
	if other.Store.Collection != "" {
		c.Store.Collection = other.Store.Collection
	}
	if other.Store.SnapshotPath != "" {
		c.Store.SnapshotPath = other.Store.SnapshotPath
	}

	if other.Search.DefaultTopK != 0 {
		c.Search.DefaultTopK = other.Search.DefaultTopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}

	if other.Index.MaxConcurrent != 0 {
		c.Index.MaxConcurrent = other.Index.MaxConcurrent
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies UIDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("UIDEX_REGISTRY_URL"); v != "" {
		c.Registry.BaseURL = v
	}
	if v := os.Getenv("UIDEX_REGISTRY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Registry.Timeout = d
		}
	}
	if v := os.Getenv("UIDEX_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Registry.MaxConcurrent = n
		}
	}

	if v := os.Getenv("UIDEX_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("UIDEX_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("UIDEX_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}

	if v := os.Getenv("UIDEX_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("UIDEX_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("UIDEX_EMBED_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("UIDEX_EMBED_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	// OPENAI_API_KEY works as a fallback for the openai provider.
	if c.Embeddings.APIKey == "" {
		c.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("UIDEX_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimensions = n
		}
	}

	if v := os.Getenv("UIDEX_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("UIDEX_QDRANT_ADDR"); v != "" {
		c.Store.QdrantAddr = v
	}
	if v := os.Getenv("UIDEX_COLLECTION"); v != "" {
		c.Store.Collection = v
	}

	if v := os.Getenv("UIDEX_MAX_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxTopK = n
		}
	}

	if v := os.Getenv("UIDEX_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("UIDEX_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url must not be empty")
	}
	if c.Registry.Timeout <= 0 {
		return fmt.Errorf("registry.timeout must be positive, got %s", c.Registry.Timeout)
	}
	if c.Registry.MaxConcurrent <= 0 {
		return fmt.Errorf("registry.max_concurrent must be positive, got %d", c.Registry.MaxConcurrent)
	}

	validCaches := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validCaches[strings.ToLower(c.Cache.Backend)] {
		return fmt.Errorf("cache.backend must be 'memory', 'redis', or 'none', got %s", c.Cache.Backend)
	}
	if strings.EqualFold(c.Cache.Backend, "redis") && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required when cache.backend is 'redis'")
	}

	validProviders := map[string]bool{"static": true, "openai": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'static' or 'openai', got %s", c.Embeddings.Provider)
	}

	validStores := map[string]bool{"memory": true, "qdrant": true}
	if !validStores[strings.ToLower(c.Store.Backend)] {
		return fmt.Errorf("store.backend must be 'memory' or 'qdrant', got %s", c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, "qdrant") && c.Store.QdrantAddr == "" {
		return fmt.Errorf("store.qdrant_addr is required when store.backend is 'qdrant'")
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection must not be empty")
	}

	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("search.default_top_k must be positive, got %d", c.Search.DefaultTopK)
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.max_top_k (%d) must be at least search.default_top_k (%d)",
			c.Search.MaxTopK, c.Search.DefaultTopK)
	}

	if c.Index.MaxConcurrent <= 0 {
		return fmt.Errorf("index.max_concurrent must be positive, got %d", c.Index.MaxConcurrent)
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a yaml file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
