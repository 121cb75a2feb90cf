package mcp

import (
	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/indexer"
	"github.com/uidex/uidex/internal/registry"
	"github.com/uidex/uidex/internal/store"
)

// SearchPackagesInput defines the input schema for search_npm_packages.
type SearchPackagesInput struct {
	Query string `json:"query" jsonschema:"the npm registry search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchPackagesOutput defines the output schema for search_npm_packages.
type SearchPackagesOutput struct {
	Query    string                  `json:"query"`
	Total    int                     `json:"total"`
	Packages []registry.SearchResult `json:"packages"`
}

// PackageInfoInput defines the input schema for get_npm_package_info.
type PackageInfoInput struct {
	Package string `json:"package" jsonschema:"package name, e.g. @mui/material or antd"`
	Version string `json:"version,omitempty" jsonschema:"package version, defaults to latest"`
}

// PackageInfoOutput defines the output schema for get_npm_package_info.
type PackageInfoOutput struct {
	Metadata     *registry.PackageMetadata `json:"metadata"`
	Info         *registry.PackageInfo     `json:"info"`
	HasTypes     bool                      `json:"has_types"`
	Dependencies map[string]string         `json:"dependencies,omitempty"`
}

// ComponentDataInput defines the input schema for get_npm_component_data.
type ComponentDataInput struct {
	Package   string `json:"package" jsonschema:"package name to extract components from"`
	Version   string `json:"version,omitempty" jsonschema:"package version, defaults to latest"`
	Component string `json:"component,omitempty" jsonschema:"filter to components whose name contains this string"`
}

// ComponentDataOutput defines the output schema for get_npm_component_data.
type ComponentDataOutput struct {
	Package    string              `json:"package"`
	Version    string              `json:"version"`
	Total      int                 `json:"total"`
	Components []*component.Record `json:"components"`
	Skipped    []component.Skipped `json:"skipped,omitempty"`
}

// ReadmeInput defines the input schema for get_npm_readme.
type ReadmeInput struct {
	Package string `json:"package" jsonschema:"package name"`
	Version string `json:"version,omitempty" jsonschema:"package version, defaults to latest"`
}

// ReadmeOutput defines the output schema for get_npm_readme.
type ReadmeOutput struct {
	Package string `json:"package"`
	Version string `json:"version"`
	Readme  string `json:"readme"`
	Length  int    `json:"length"`
}

// SearchUILibrariesInput defines the input schema for search_ui_libraries.
type SearchUILibrariesInput struct {
	Query string `json:"query" jsonschema:"what to look for, e.g. button, form, modal"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchUILibrariesOutput defines the output schema for search_ui_libraries.
type SearchUILibrariesOutput struct {
	Query       string                  `json:"query"`
	Total       int                     `json:"total"`
	UILibraries []registry.SearchResult `json:"ui_libraries"`
	Searched    []string                `json:"popular_libraries_searched"`
}

// ParseStorybookInput defines the input schema for parse_storybook_url.
type ParseStorybookInput struct {
	URL string `json:"url" jsonschema:"storybook site URL, e.g. https://storybook.example.com"`
}

// ParseStorybookOutput defines the output schema for parse_storybook_url.
type ParseStorybookOutput struct {
	URL        string              `json:"url"`
	Title      string              `json:"title,omitempty"`
	Version    string              `json:"version,omitempty"`
	Total      int                 `json:"total"`
	Components []*component.Record `json:"components"`
	Skipped    []component.Skipped `json:"skipped,omitempty"`
}

// IndexStorybookInput defines the input schema for index_storybook_to_rag.
type IndexStorybookInput struct {
	URL     string `json:"url" jsonschema:"storybook site URL to index"`
	Library string `json:"library,omitempty" jsonschema:"library name override, defaults to the site title"`
}

// IndexPackageInput defines the input schema for index_npm_package_to_rag.
type IndexPackageInput struct {
	Package string `json:"package" jsonschema:"package name to index"`
	Version string `json:"version,omitempty" jsonschema:"package version, defaults to latest"`
}

// IndexOutput defines the output schema shared by both indexing tools.
type IndexOutput struct {
	Source    string              `json:"source"`
	Inserted  int                 `json:"inserted"`
	Updated   int                 `json:"updated"`
	Unchanged int                 `json:"unchanged"`
	Failed    int                 `json:"failed"`
	Outcomes  []*indexer.Outcome  `json:"outcomes"`
	Skipped   []component.Skipped `json:"skipped,omitempty"`
}

// SearchComponentsInput defines the input schema for search_components_rag.
type SearchComponentsInput struct {
	Query      string `json:"query" jsonschema:"natural-language description of the component you need"`
	Library    string `json:"library,omitempty" jsonschema:"restrict results to one library"`
	SourceKind string `json:"source_kind,omitempty" jsonschema:"restrict by source: registry or storybook"`
	Category   string `json:"category,omitempty" jsonschema:"restrict by category: atoms, molecules, organisms, templates"`
	Tag        string `json:"tag,omitempty" jsonschema:"restrict to records carrying this tag"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10, max 50"`
}

// SearchComponentsOutput defines the output schema for search_components_rag.
type SearchComponentsOutput struct {
	Query string       `json:"query"`
	Total int          `json:"total"`
	Hits  []*store.Hit `json:"hits"`
}

// StatsInput defines the input schema for get_rag_collection_stats.
type StatsInput struct{}

// StatsOutput defines the output schema for get_rag_collection_stats.
type StatsOutput struct {
	Stats *store.CollectionStats `json:"stats"`
}

// ClearInput defines the input schema for clear_rag_collection.
type ClearInput struct {
	Confirm bool `json:"confirm" jsonschema:"must be true; clearing is destructive and irreversible"`
}

// ClearOutput defines the output schema for clear_rag_collection.
type ClearOutput struct {
	Removed int `json:"removed"`
}
