package mcp

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uidex/uidex/internal/cache"
	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/embed"
	dexerrors "github.com/uidex/uidex/internal/errors"
	"github.com/uidex/uidex/internal/indexer"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/search"
	"github.com/uidex/uidex/internal/storybook"
	"github.com/uidex/uidex/internal/store"
)

// popularUILibraries get priority placement in search_ui_libraries
// results when their names match.
var popularUILibraries = []string{
	"@mui/material", "@mui/base", "antd", "@chakra-ui/react",
	"@radix-ui/react-", "@headlessui/react", "@mantine/core",
	"react-bootstrap", "semantic-ui-react",
	"@skbkontur/react-ui", "@skbkontur/react-icons",
	"kontur-ui",
}

// uiKeywords mark a package as a UI library when present in its
// registry keywords.
var uiKeywords = map[string]bool{
	"react": true, "ui": true, "component": true, "design-system": true,
}

// Service implements the UIdex operations behind the MCP tools and the
// CLI: fetch, cache, normalize, index, and search.
type Service struct {
	registry  *registry.Client
	storybook *storybook.Parser
	loader    *cache.Loader
	indexer   *indexer.Indexer
	searcher  *search.Searcher
	store     store.VectorStore
	embedder  embed.Embedder
	logger    *slog.Logger
}

// ServiceDeps bundles the collaborators a Service needs.
type ServiceDeps struct {
	Registry  *registry.Client
	Storybook *storybook.Parser
	Loader    *cache.Loader
	Indexer   *indexer.Indexer
	Searcher  *search.Searcher
	Store     store.VectorStore
	Embedder  embed.Embedder
	Logger    *slog.Logger
}

// NewService creates a Service. A Loader over a nil store disables
// caching without changing behavior.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loader := deps.Loader
	if loader == nil {
		loader = cache.NewLoader(nil, logger)
	}
	return &Service{
		registry:  deps.Registry,
		storybook: deps.Storybook,
		loader:    loader,
		indexer:   deps.Indexer,
		searcher:  deps.Searcher,
		store:     deps.Store,
		embedder:  deps.Embedder,
		logger:    logger,
	}
}

// SearchPackages searches the npm registry, cached per (query, limit).
func (s *Service) SearchPackages(ctx context.Context, query string, limit int) ([]registry.SearchResult, error) {
	if query == "" {
		return nil, dexerrors.New(dexerrors.ErrCodeQueryEmpty, "search query is empty", nil)
	}
	if limit <= 0 {
		limit = 20
	}

	return cache.GetOrFetchJSON(ctx, s.loader, cache.SearchKey(query, limit), cache.SearchTTL,
		func(ctx context.Context) ([]registry.SearchResult, error) {
			return s.registry.Search(ctx, query, limit)
		})
}

// packageMetadata fetches a packument's metadata view through the cache.
func (s *Service) packageMetadata(ctx context.Context, pkg string) (*registry.PackageMetadata, error) {
	return cache.GetOrFetchJSON(ctx, s.loader, cache.MetadataKey(pkg), cache.MetadataTTL,
		func(ctx context.Context) (*registry.PackageMetadata, error) {
			return s.registry.PackageMetadata(ctx, pkg)
		})
}

// packageInfo fetches one version's manifest through the cache.
func (s *Service) packageInfo(ctx context.Context, pkg, version string) (*registry.PackageInfo, error) {
	return cache.GetOrFetchJSON(ctx, s.loader, cache.PackageKey(pkg, version), cache.PackageTTL,
		func(ctx context.Context) (*registry.PackageInfo, error) {
			return s.registry.PackageInfo(ctx, pkg, version)
		})
}

// PackageInfo returns metadata plus one version's manifest.
func (s *Service) PackageInfo(ctx context.Context, pkg, version string) (*PackageInfoOutput, error) {
	meta, err := s.packageMetadata(ctx, pkg)
	if err != nil {
		return nil, err
	}

	info, err := s.packageInfo(ctx, pkg, version)
	if err != nil {
		return nil, err
	}

	return &PackageInfoOutput{
		Metadata:     meta,
		Info:         info,
		HasTypes:     info.HasTypes(),
		Dependencies: info.Dependencies,
	}, nil
}

// Readme returns the package README through the cache.
func (s *Service) Readme(ctx context.Context, pkg, version string) (string, error) {
	return cache.GetOrFetchJSON(ctx, s.loader, cache.ReadmeKey(pkg, version), cache.ReadmeTTL,
		func(ctx context.Context) (string, error) {
			return s.registry.Readme(ctx, pkg, version)
		})
}

// ComponentData fetches a package and normalizes it into component
// records without indexing them. The optional filter keeps only
// components whose name contains it, case-insensitively.
func (s *Service) ComponentData(ctx context.Context, pkg, version, filter string) (*ComponentDataOutput, error) {
	meta, err := s.packageMetadata(ctx, pkg)
	if err != nil {
		return nil, err
	}
	info, err := s.packageInfo(ctx, pkg, version)
	if err != nil {
		return nil, err
	}
	readme, err := s.Readme(ctx, pkg, version)
	if err != nil {
		return nil, err
	}

	records, skipped, err := component.NormalizePackage(meta, info, readme)
	if err != nil {
		return nil, err
	}

	if filter != "" {
		needle := strings.ToLower(filter)
		filtered := records[:0]
		for _, rec := range records {
			if strings.Contains(strings.ToLower(rec.Name), needle) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	resolved := info.Version
	if resolved == "" {
		resolved = meta.LatestVersion()
	}

	return &ComponentDataOutput{
		Package:    pkg,
		Version:    resolved,
		Total:      len(records),
		Components: records,
		Skipped:    skipped,
	}, nil
}

// SearchUILibraries searches the registry and sorts known UI libraries
// to the front.
func (s *Service) SearchUILibraries(ctx context.Context, query string, limit int) (*SearchUILibrariesOutput, error) {
	if limit <= 0 {
		limit = 10
	}

	// Over-fetch so the partition still fills the limit.
	results, err := s.SearchPackages(ctx, query, limit*2)
	if err != nil {
		return nil, err
	}

	var uiLibs, others []registry.SearchResult
	for _, pkg := range results {
		if isUILibrary(pkg) {
			uiLibs = append(uiLibs, pkg)
		} else {
			others = append(others, pkg)
		}
	}

	if len(uiLibs) > limit {
		uiLibs = uiLibs[:limit]
	}
	for _, pkg := range others {
		if len(uiLibs) >= limit {
			break
		}
		uiLibs = append(uiLibs, pkg)
	}

	return &SearchUILibrariesOutput{
		Query:       query,
		Total:       len(uiLibs),
		UILibraries: uiLibs,
		Searched:    popularUILibraries,
	}, nil
}

func isUILibrary(pkg registry.SearchResult) bool {
	name := strings.ToLower(pkg.Name)
	for _, lib := range popularUILibraries {
		if strings.Contains(name, strings.ToLower(lib)) {
			return true
		}
	}
	for _, keyword := range pkg.Keywords {
		if uiKeywords[strings.ToLower(keyword)] {
			return true
		}
	}
	return false
}

// parseStorybook parses a storybook site through the cache.
func (s *Service) parseStorybook(ctx context.Context, url string) (*storybook.Site, error) {
	return cache.GetOrFetchJSON(ctx, s.loader, cache.StorybookKey(url), cache.StorybookTTL,
		func(ctx context.Context) (*storybook.Site, error) {
			return s.storybook.Parse(ctx, url)
		})
}

// ParseStorybook parses a storybook site and normalizes its stories
// into component records without indexing them.
func (s *Service) ParseStorybook(ctx context.Context, url string) (*ParseStorybookOutput, error) {
	site, err := s.parseStorybook(ctx, url)
	if err != nil {
		return nil, err
	}

	records, skipped, err := component.NormalizeStorybook(site, "")
	if err != nil {
		return nil, err
	}

	return &ParseStorybookOutput{
		URL:        site.URL,
		Title:      site.Title,
		Version:    site.Version,
		Total:      len(records),
		Components: records,
		Skipped:    skipped,
	}, nil
}

// IndexPackage fetches, normalizes, and indexes one npm package.
func (s *Service) IndexPackage(ctx context.Context, pkg, version string) (*IndexOutput, error) {
	data, err := s.ComponentData(ctx, pkg, version, "")
	if err != nil {
		return nil, err
	}

	result, err := s.indexer.IndexBatch(ctx, data.Components)
	if err != nil {
		return nil, err
	}

	return indexOutput(pkg, result, data.Skipped), nil
}

// IndexStorybook parses, normalizes, and indexes one storybook site.
func (s *Service) IndexStorybook(ctx context.Context, url, library string) (*IndexOutput, error) {
	site, err := s.parseStorybook(ctx, url)
	if err != nil {
		return nil, err
	}

	records, skipped, err := component.NormalizeStorybook(site, library)
	if err != nil {
		return nil, err
	}

	result, err := s.indexer.IndexBatch(ctx, records)
	if err != nil {
		return nil, err
	}

	return indexOutput(url, result, skipped), nil
}

func indexOutput(source string, result *indexer.BatchResult, skipped []component.Skipped) *IndexOutput {
	return &IndexOutput{
		Source:    source,
		Inserted:  result.Inserted,
		Updated:   result.Updated,
		Unchanged: result.Unchanged,
		Failed:    result.Failed,
		Outcomes:  result.Outcomes,
		Skipped:   skipped,
	}
}

// SearchComponents runs a semantic query over the indexed components.
func (s *Service) SearchComponents(ctx context.Context, q search.Query) (*search.Response, error) {
	return s.searcher.Search(ctx, q)
}

// Stats returns collection statistics.
func (s *Service) Stats(ctx context.Context) (*store.CollectionStats, error) {
	return s.store.Stats(ctx)
}

// Clear removes every indexed record and reports how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.store.Clear(ctx); err != nil {
		return 0, err
	}
	return count, nil
}
