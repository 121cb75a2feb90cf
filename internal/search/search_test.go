package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/embed"
	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/indexer"
	"github.com/uidex/uidex/internal/store"
)

func indexedSearcher(t *testing.T) *Searcher {
	t.Helper()
	e := embed.NewStaticEmbedder()
	s := store.NewMemoryStore(e.Dimensions())
	t.Cleanup(func() { s.Close() })
	ix := indexer.New(s, e, nil)

	for _, spec := range []struct{ library, name, description string }{
		{"example-ui", "Button", "a clickable button for forms"},
		{"example-ui", "IconButton", "a button with an icon"},
		{"example-ui", "DataGrid", "virtualized spreadsheet table rows"},
		{"other-ui", "Button", "another button implementation"},
	} {
		rec := &component.Record{
			SourceKind:  component.SourceRegistry,
			Library:     spec.library,
			Name:        spec.name,
			Version:     "1.0.0",
			Description: spec.description,
			Category:    component.InferCategory(spec.name),
		}
		rec.Finalize()
		_, err := ix.Index(context.Background(), rec)
		require.NoError(t, err)
	}
	return New(s, e, nil)
}

func TestSearch_ReturnsRankedHits(t *testing.T) {
	searcher := indexedSearcher(t)

	resp, err := searcher.Search(context.Background(), Query{Text: "clickable button", TopK: 3})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)
	assert.Equal(t, 3, resp.Total)

	for i := 1; i < len(resp.Hits); i++ {
		assert.GreaterOrEqual(t, resp.Hits[i-1].Score, resp.Hits[i].Score)
	}
	assert.Contains(t, []string{"Button", "IconButton"}, resp.Hits[0].Record.Name)
}

func TestSearch_FilterRestrictsResults(t *testing.T) {
	searcher := indexedSearcher(t)

	resp, err := searcher.Search(context.Background(), Query{
		Text:   "button",
		Filter: store.Filter{Library: "other-ui"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "other-ui", resp.Hits[0].Record.Library)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	searcher := indexedSearcher(t)

	for _, text := range []string{"", "   ", "\t\n "} {
		_, err := searcher.Search(context.Background(), Query{Text: text})
		require.Error(t, err, "query %q", text)
		assert.Equal(t, dexerrors.ErrCodeQueryEmpty, dexerrors.GetCode(err))
	}
}

func TestSearch_TopKValidation(t *testing.T) {
	searcher := indexedSearcher(t)
	ctx := context.Background()

	_, err := searcher.Search(ctx, Query{Text: "button", TopK: -1})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeLimitOutOfRange, dexerrors.GetCode(err))

	_, err = searcher.Search(ctx, Query{Text: "button", TopK: MaxTopK + 1})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeLimitOutOfRange, dexerrors.GetCode(err))

	// Zero means the default.
	resp, err := searcher.Search(ctx, Query{Text: "button"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Hits), DefaultTopK)
}

func TestSearch_WithLimits(t *testing.T) {
	e := embed.NewStaticEmbedder()
	s := store.NewMemoryStore(e.Dimensions())
	t.Cleanup(func() { s.Close() })
	searcher := New(s, e, nil, WithLimits(2, 5))

	_, err := searcher.Search(context.Background(), Query{Text: "button", TopK: 6})
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeLimitOutOfRange, dexerrors.GetCode(err))

	// TopK within the custom cap but above the stock one's default is fine.
	_, err = searcher.Search(context.Background(), Query{Text: "button", TopK: 5})
	require.NoError(t, err)
}

func TestSearch_Deterministic(t *testing.T) {
	searcher := indexedSearcher(t)
	ctx := context.Background()

	first, err := searcher.Search(ctx, Query{Text: "button component"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := searcher.Search(ctx, Query{Text: "button component"})
		require.NoError(t, err)
		require.Len(t, again.Hits, len(first.Hits))
		for j := range first.Hits {
			assert.Equal(t, first.Hits[j].Record.ID, again.Hits[j].Record.ID)
		}
	}
}

func TestSortHits_TieBreaks(t *testing.T) {
	older := &component.Record{ID: "bbb", IndexedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	newer := &component.Record{ID: "aaa", IndexedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)}
	sameTimeA := &component.Record{ID: "aaa", IndexedAt: older.IndexedAt}
	sameTimeB := &component.Record{ID: "ccc", IndexedAt: older.IndexedAt}

	t.Run("higher score first", func(t *testing.T) {
		hits := []*store.Hit{
			{Record: older, Score: 0.4},
			{Record: newer, Score: 0.9},
		}
		sortHits(hits)
		assert.Equal(t, float32(0.9), hits[0].Score)
	})

	t.Run("equal score prefers newer IndexedAt", func(t *testing.T) {
		hits := []*store.Hit{
			{Record: older, Score: 0.5},
			{Record: newer, Score: 0.5},
		}
		sortHits(hits)
		assert.Equal(t, "aaa", hits[0].Record.ID)
	})

	t.Run("equal score and time orders by ID", func(t *testing.T) {
		hits := []*store.Hit{
			{Record: sameTimeB, Score: 0.5},
			{Record: sameTimeA, Score: 0.5},
		}
		sortHits(hits)
		assert.Equal(t, "aaa", hits[0].Record.ID)
	})
}
