package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateUserConfig points XDG_CONFIG_HOME at an empty temp dir so a
// developer's real user config cannot leak into tests.
func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "https://registry.npmjs.org", cfg.Registry.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, 8, cfg.Registry.MaxConcurrent)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "ui_components", cfg.Store.Collection)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	assert.Equal(t, "stdio", cfg.Server.Transport)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolateUserConfig(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Registry.BaseURL, cfg.Registry.BaseURL)
}

func TestLoad_ProjectConfigOverrides(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()

	yaml := `
embeddings:
  provider: openai
  model: custom-embedder
store:
  backend: qdrant
  qdrant_addr: qdrant.internal:6334
search:
  max_top_k: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".uidex.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "custom-embedder", cfg.Embeddings.Model)
	assert.Equal(t, "qdrant", cfg.Store.Backend)
	assert.Equal(t, "qdrant.internal:6334", cfg.Store.QdrantAddr)
	assert.Equal(t, 25, cfg.Search.MaxTopK)

	// Untouched fields keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
}

func TestLoad_UserConfigThenProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "uidex"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(xdg, "uidex", "config.yaml"),
		[]byte("cache:\n  backend: redis\n  redis_addr: user-redis:6379\nserver:\n  log_level: debug\n"),
		0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".uidex.yaml"),
		[]byte("cache:\n  redis_addr: project-redis:6379\n"),
		0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Project config wins over user config, which wins over defaults.
	assert.Equal(t, "project-redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".uidex.yaml"),
		[]byte("embeddings:\n  provider: openai\n"),
		0o644))

	t.Setenv("UIDEX_EMBED_PROVIDER", "static")
	t.Setenv("UIDEX_QDRANT_ADDR", "env-qdrant:6334")
	t.Setenv("UIDEX_MAX_TOP_K", "30")
	t.Setenv("UIDEX_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "env-qdrant:6334", cfg.Store.QdrantAddr)
	assert.Equal(t, 30, cfg.Search.MaxTopK)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	isolateUserConfig(t)

	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	t.Setenv("UIDEX_EMBED_API_KEY", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Embeddings.APIKey)

	t.Setenv("UIDEX_EMBED_API_KEY", "sk-explicit")
	cfg, err = Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", cfg.Embeddings.APIKey)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".uidex.yaml"),
		[]byte("cache: [not a map"),
		0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }},
		{"bad embed provider", func(c *Config) { c.Embeddings.Provider = "ollama" }},
		{"bad store backend", func(c *Config) { c.Store.Backend = "pinecone" }},
		{"qdrant without addr", func(c *Config) { c.Store.Backend = "qdrant"; c.Store.QdrantAddr = "" }},
		{"empty collection", func(c *Config) { c.Store.Collection = "" }},
		{"zero default top_k", func(c *Config) { c.Search.DefaultTopK = 0 }},
		{"max below default top_k", func(c *Config) { c.Search.MaxTopK = 5 }},
		{"negative timeout", func(c *Config) { c.Registry.Timeout = -time.Second }},
		{"zero index concurrency", func(c *Config) { c.Index.MaxConcurrent = 0 }},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.Store.Backend = "qdrant"
	cfg.Store.QdrantAddr = "qdrant.internal:6334"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".uidex.yaml")))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "qdrant", loaded.Store.Backend)
	assert.Equal(t, "qdrant.internal:6334", loaded.Store.QdrantAddr)
}
