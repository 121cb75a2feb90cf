package embed

import (
	"log/slog"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	CacheSize  int
}

// New constructs the configured embedder, wrapped in the LRU cache.
// The static provider needs no configuration at all.
func New(cfg Config, logger *slog.Logger) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Provider {
	case ProviderStatic, "":
		inner = NewStaticEmbedder()

	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, dexerrors.ConfigError("unknown embedding provider: "+cfg.Provider, nil).
			WithSuggestion("Supported providers: openai, static.")
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
