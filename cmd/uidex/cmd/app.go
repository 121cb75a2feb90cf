package cmd

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/uidex/uidex/internal/cache"
	"github.com/uidex/uidex/internal/config"
	"github.com/uidex/uidex/internal/embed"
	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/indexer"
	"github.com/uidex/uidex/internal/mcp"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/search"
	"github.com/uidex/uidex/internal/store"
	"github.com/uidex/uidex/internal/storybook"
)

// app bundles the wired pipeline behind the CLI commands and the MCP
// server: sources, cache, embedder, vector store, indexer, searcher.
type app struct {
	cfg      *config.Config
	service  *mcp.Service
	logger   *slog.Logger
	embedder embed.Embedder
	vectors  store.VectorStore
	memory   *store.MemoryStore // non-nil for the memory backend
	cache    cache.Store        // may be nil when caching is disabled
}

// loadConfig loads the configuration for the current directory, with
// the --offline flag forcing the fully local stack.
func loadConfig(offline bool) (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Embeddings.Provider = "static"
		cfg.Store.Backend = "memory"
		cfg.Cache.Backend = "memory"
	}
	return cfg, nil
}

// newApp wires the full pipeline from the configuration. The caller
// owns the returned app and must Close it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embed.New(embed.Config{
		Provider:   cfg.Embeddings.Provider,
		APIKey:     cfg.Embeddings.APIKey,
		BaseURL:    cfg.Embeddings.BaseURL,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, embedder: embedder}

	switch strings.ToLower(cfg.Store.Backend) {
	case "qdrant":
		a.vectors, err = store.NewQdrantStore(ctx, store.QdrantConfig{
			Addr:       cfg.Store.QdrantAddr,
			Collection: cfg.Store.Collection,
			Dimensions: embedder.Dimensions(),
		}, logger)
		if err != nil {
			_ = embedder.Close()
			return nil, err
		}
	default:
		ms := store.NewMemoryStore(embedder.Dimensions())
		if path := cfg.Store.SnapshotPath; path != "" {
			if _, statErr := os.Stat(path); statErr == nil {
				if loadErr := ms.Load(path); loadErr != nil {
					logger.Warn("failed to load store snapshot, starting empty",
						slog.String("path", path),
						slog.String("error", loadErr.Error()))
				}
			}
		}
		a.memory = ms
		a.vectors = ms
	}

	a.cache = newCacheStore(ctx, cfg, logger)

	retryCfg := dexerrors.UpstreamRetryConfig()
	if cfg.Registry.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.Registry.MaxRetries
	}

	reg := registry.NewClient(
		registry.WithBaseURL(cfg.Registry.BaseURL),
		registry.WithTimeout(cfg.Registry.Timeout),
		registry.WithMaxConcurrent(int64(cfg.Registry.MaxConcurrent)),
		registry.WithRateLimit(cfg.Registry.RatePerSecond, int(cfg.Registry.RatePerSecond)*2),
		registry.WithRetryConfig(retryCfg),
		registry.WithLogger(logger),
	)

	parser := storybook.NewParser(
		storybook.WithTimeout(cfg.Registry.Timeout),
		storybook.WithMaxConcurrent(int64(cfg.Registry.MaxConcurrent)),
		storybook.WithRateLimit(cfg.Registry.RatePerSecond, int(cfg.Registry.RatePerSecond)*2),
		storybook.WithRetryConfig(retryCfg),
		storybook.WithLogger(logger),
	)

	a.service = mcp.NewService(mcp.ServiceDeps{
		Registry:  reg,
		Storybook: parser,
		Loader:    cache.NewLoader(a.cache, logger),
		Indexer: indexer.New(a.vectors, embedder, logger,
			indexer.WithMaxConcurrent(cfg.Index.MaxConcurrent)),
		Searcher: search.New(a.vectors, embedder, logger,
			search.WithLimits(cfg.Search.DefaultTopK, cfg.Search.MaxTopK)),
		Store:    a.vectors,
		Embedder: embedder,
		Logger:   logger,
	})

	return a, nil
}

// newCacheStore builds the configured cache backend. A redis backend
// that cannot be reached degrades to the in-memory cache with a
// warning; cache trouble never blocks the pipeline.
func newCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Store {
	switch strings.ToLower(cfg.Cache.Backend) {
	case "none":
		return nil
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			logger.Warn("redis cache unavailable, falling back to memory cache",
				slog.String("addr", cfg.Cache.RedisAddr),
				slog.String("error", err.Error()))
			return cache.NewMemoryStore(cfg.Cache.MaxEntries)
		}
		return rs
	default:
		return cache.NewMemoryStore(cfg.Cache.MaxEntries)
	}
}

// Close persists the memory snapshot when configured and releases all
// backend resources.
func (a *app) Close() {
	if a.memory != nil && a.cfg.Store.SnapshotPath != "" {
		if err := a.memory.Save(a.cfg.Store.SnapshotPath); err != nil {
			a.logger.Warn("failed to save store snapshot",
				slog.String("path", a.cfg.Store.SnapshotPath),
				slog.String("error", err.Error()))
		}
	}
	if err := a.vectors.Close(); err != nil {
		a.logger.Warn("closing vector store", slog.String("error", err.Error()))
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("closing embedder", slog.String("error", err.Error()))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing cache", slog.String("error", err.Error()))
		}
	}
}
