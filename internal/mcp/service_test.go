package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidex/uidex/internal/cache"
	"github.com/uidex/uidex/internal/embed"
	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/indexer"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/search"
	"github.com/uidex/uidex/internal/store"
	"github.com/uidex/uidex/internal/storybook"
)

const testPackument = `{
	"name": "example-ui",
	"description": "A tiny UI kit",
	"dist-tags": {"latest": "1.2.0"},
	"keywords": ["react", "ui"],
	"homepage": "https://example-ui.dev",
	"readme": "# example-ui\n\n## Button\n\nA clickable button for forms.\n\n## Card\n\nA content card with shadow.\n\n## Usage\n\nImport and go.",
	"versions": {
		"1.2.0": {
			"name": "example-ui",
			"version": "1.2.0",
			"description": "A tiny UI kit",
			"keywords": ["react", "ui"],
			"types": "dist/index.d.ts"
		}
	}
}`

const testSearchResponse = `{
	"objects": [
		{"package": {"name": "@mui/material", "version": "5.15.0", "description": "React components"}, "score": {"final": 0.95}},
		{"package": {"name": "left-pad", "version": "1.3.0", "description": "pads left"}, "score": {"final": 0.80}},
		{"package": {"name": "acme-kit", "version": "0.4.0", "description": "widgets", "keywords": ["ui"]}, "score": {"final": 0.60}}
	]
}`

const testStorybookHTML = `<html>
<head>
	<title>Acme Design System</title>
	<meta name="description" content="Components for Acme products">
	<meta name="storybook-version" content="7.6.0">
</head>
<body>
	<script type="application/ld+json">{"name": "Button", "description": "Primary action button", "category": "forms"}</script>
	<script type="application/ld+json">{"name": "Card", "description": "Content card with shadow"}</script>
</body>
</html>`

// newTestService wires a Service against fake npm and storybook servers,
// a memory vector store, and the static embedder. Caching is disabled.
func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	npm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/-/v1/search":
			_, _ = w.Write([]byte(testSearchResponse))
		case "/example-ui":
			_, _ = w.Write([]byte(testPackument))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(npm.Close)

	sb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(testStorybookHTML))
	}))
	t.Cleanup(sb.Close)

	fastRetry := dexerrors.RetryConfig{
		MaxRetries:   1,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	e := embed.NewStaticEmbedder()
	s := store.NewMemoryStore(e.Dimensions())
	t.Cleanup(func() { s.Close() })

	svc := NewService(ServiceDeps{
		Registry:  registry.NewClient(registry.WithBaseURL(npm.URL), registry.WithRetryConfig(fastRetry)),
		Storybook: storybook.NewParser(storybook.WithRetryConfig(fastRetry)),
		Indexer:   indexer.New(s, e, nil),
		Searcher:  search.New(s, e, nil),
		Store:     s,
		Embedder:  e,
	})
	return svc, sb.URL
}

func TestService_SearchPackages(t *testing.T) {
	svc, _ := newTestService(t)

	results, err := svc.SearchPackages(context.Background(), "react components", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "@mui/material", results[0].Name)
}

func TestService_SearchPackages_EmptyQuery(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SearchPackages(context.Background(), "", 10)
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeQueryEmpty, dexerrors.GetCode(err))
}

func TestService_PackageInfo(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.PackageInfo(context.Background(), "example-ui", "")
	require.NoError(t, err)
	assert.Equal(t, "example-ui", out.Metadata.Name)
	assert.Equal(t, "1.2.0", out.Info.Version)
	assert.True(t, out.HasTypes)
}

func TestService_ComponentData(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.ComponentData(context.Background(), "example-ui", "", "")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", out.Version)
	require.Len(t, out.Components, 2)

	names := []string{out.Components[0].Name, out.Components[1].Name}
	assert.ElementsMatch(t, []string{"Button", "Card"}, names)
	for _, rec := range out.Components {
		assert.Equal(t, "example-ui", rec.Library)
		assert.NotEmpty(t, rec.ID)
	}
}

func TestService_ComponentData_Filter(t *testing.T) {
	svc, _ := newTestService(t)

	// Filter is a case-insensitive substring match on the name.
	out, err := svc.ComponentData(context.Background(), "example-ui", "", "but")
	require.NoError(t, err)
	require.Len(t, out.Components, 1)
	assert.Equal(t, "Button", out.Components[0].Name)
	assert.Equal(t, 1, out.Total)
}

func TestService_SearchUILibraries_PartitionsUIFirst(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.SearchUILibraries(context.Background(), "components", 10)
	require.NoError(t, err)
	require.Len(t, out.UILibraries, 3)

	// Known library and keyword-flagged package first, backfill last.
	assert.Equal(t, "@mui/material", out.UILibraries[0].Name)
	assert.Equal(t, "acme-kit", out.UILibraries[1].Name)
	assert.Equal(t, "left-pad", out.UILibraries[2].Name)
	assert.Equal(t, popularUILibraries, out.Searched)
}

func TestService_SearchUILibraries_LimitCapsUIResults(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.SearchUILibraries(context.Background(), "components", 1)
	require.NoError(t, err)
	require.Len(t, out.UILibraries, 1)
	assert.Equal(t, "@mui/material", out.UILibraries[0].Name)
}

func TestService_ParseStorybook(t *testing.T) {
	svc, sbURL := newTestService(t)

	out, err := svc.ParseStorybook(context.Background(), sbURL)
	require.NoError(t, err)
	assert.Equal(t, "Acme Design System", out.Title)
	assert.Equal(t, "7.6.0", out.Version)
	require.Len(t, out.Components, 2)
	assert.Equal(t, "Acme Design System", out.Components[0].Library)
}

func TestService_IndexPackage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.IndexPackage(ctx, "example-ui", "")
	require.NoError(t, err)
	assert.Equal(t, "example-ui", out.Source)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 0, out.Failed)

	// Re-indexing unchanged content writes nothing.
	again, err := svc.IndexPackage(ctx, "example-ui", "")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 2, again.Unchanged)
}

func TestService_ConcurrentIndexPackage_ColdCache(t *testing.T) {
	var packumentHits atomic.Int64
	npm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/example-ui" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		packumentHits.Add(1)
		_, _ = w.Write([]byte(testPackument))
	}))
	t.Cleanup(npm.Close)

	e := embed.NewStaticEmbedder()
	s := store.NewMemoryStore(e.Dimensions())
	t.Cleanup(func() { s.Close() })

	svc := NewService(ServiceDeps{
		Registry: registry.NewClient(registry.WithBaseURL(npm.URL)),
		Loader:   cache.NewLoader(cache.NewMemoryStore(128), nil),
		Indexer:  indexer.New(s, e, nil),
		Searcher: search.New(s, e, nil),
		Store:    s,
		Embedder: e,
	})

	outs := make([]*IndexOutput, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = svc.IndexPackage(context.Background(), "example-ui", "")
		}(i)
	}
	wg.Wait()

	var inserted, unchanged int
	for i := range outs {
		require.NoError(t, errs[i])
		inserted += outs[i].Inserted
		unchanged += outs[i].Unchanged
	}

	// The packument backs three cache keys (metadata, manifest,
	// readme). Each is fetched exactly once: concurrent callers on a
	// cold key share one flight, and a caller joining after the flight
	// retires hits the cache on the in-flight recheck.
	assert.Equal(t, int64(3), packumentHits.Load())

	// Each component lands exactly once; the racing call sees it as
	// unchanged.
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 2, unchanged)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestService_IndexStorybook_LibraryOverride(t *testing.T) {
	svc, sbURL := newTestService(t)

	out, err := svc.IndexStorybook(context.Background(), sbURL, "acme-ui")
	require.NoError(t, err)
	assert.Equal(t, sbURL, out.Source)
	assert.Equal(t, 2, out.Inserted)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Libraries["acme-ui"])
}

func TestService_SearchComponents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.IndexPackage(ctx, "example-ui", "")
	require.NoError(t, err)

	resp, err := svc.SearchComponents(ctx, search.Query{Text: "clickable button for forms"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "Button", resp.Hits[0].Record.Name)
}

func TestService_StatsAndClear(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.IndexPackage(ctx, "example-ui", "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalComponents)
	assert.Equal(t, 2, stats.SourceKinds["registry"])

	removed, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalComponents)
}

func TestService_UnknownPackage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ComponentData(context.Background(), "no-such-package", "", "")
	require.Error(t, err)
	assert.Equal(t, dexerrors.ErrCodeSourceNotFound, dexerrors.GetCode(err))
}
