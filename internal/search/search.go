// Package search answers semantic queries over the indexed components.
// Queries are embedded with the same embedder the indexer uses, so
// query and record vectors share one embedding space.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uidex/uidex/internal/embed"
	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/store"
)

// Default limits on the number of results one query may request.
const (
	DefaultTopK = 10
	MaxTopK     = 50
)

// Query is one semantic search request.
type Query struct {
	Text   string       `json:"text"`
	Filter store.Filter `json:"filter,omitempty"`
	// TopK caps the result count. Zero means DefaultTopK.
	TopK int `json:"top_k,omitempty"`
}

// Response carries the ranked hits for a query.
type Response struct {
	Query    string        `json:"query"`
	Hits     []*store.Hit  `json:"hits"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Searcher executes semantic queries against the vector store.
type Searcher struct {
	store       store.VectorStore
	embedder    embed.Embedder
	logger      *slog.Logger
	defaultTopK int
	maxTopK     int
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLimits overrides the default and maximum top_k values.
func WithLimits(defaultTopK, maxTopK int) Option {
	return func(s *Searcher) {
		if defaultTopK > 0 {
			s.defaultTopK = defaultTopK
		}
		if maxTopK > 0 {
			s.maxTopK = maxTopK
		}
	}
}

// New creates a Searcher over the given store and embedder.
func New(vs store.VectorStore, embedder embed.Embedder, logger *slog.Logger, opts ...Option) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Searcher{
		store:       vs,
		embedder:    embedder,
		logger:      logger,
		defaultTopK: DefaultTopK,
		maxTopK:     MaxTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validate normalizes the query in place and rejects bad input.
func (s *Searcher) validate(q *Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return dexerrors.New(dexerrors.ErrCodeQueryEmpty, "search query is empty", nil).
			WithSuggestion("Provide a natural-language description of the component you need.")
	}
	if q.TopK == 0 {
		q.TopK = s.defaultTopK
	}
	if q.TopK < 1 || q.TopK > s.maxTopK {
		return dexerrors.New(dexerrors.ErrCodeLimitOutOfRange, "top_k out of range", nil).
			WithDetail("top_k", strconv.Itoa(q.TopK)).
			WithDetail("max", strconv.Itoa(s.maxTopK))
	}
	return nil
}

// Search embeds the query text and returns the nearest components,
// ordered by score descending with IndexedAt then ID as tie-breaks.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	if err := s.validate(&q); err != nil {
		return nil, err
	}
	started := time.Now()

	vector, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, vector, q.Filter, q.TopK)
	if err != nil {
		return nil, err
	}

	sortHits(hits)

	s.logger.Debug("search completed",
		slog.String("query", q.Text),
		slog.Int("hits", len(hits)),
		slog.Duration("duration", time.Since(started)))

	return &Response{
		Query:    q.Text,
		Hits:     hits,
		Total:    len(hits),
		Duration: time.Since(started),
	}, nil
}

// sortHits orders by score descending; equal scores break ties by the
// most recently indexed record, then by ID so output stays stable.
func sortHits(hits []*store.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		ti, tj := hits[i].Record.IndexedAt, hits[j].Record.IndexedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
}
