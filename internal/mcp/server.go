package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uidex/uidex/internal/component"
	"github.com/uidex/uidex/internal/search"
	"github.com/uidex/uidex/internal/store"
)

// serverName identifies this server to MCP clients.
const serverName = "UIdex"

// Server is the MCP server for UIdex. It bridges AI clients with the
// component fetch/index/search pipeline.
type Server struct {
	mcp     *mcp.Server
	service *Service
	version string
	logger  *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates the MCP server and registers all tools.
func NewServer(service *Service, version string, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: service,
		version: version,
		logger:  logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, s.version
}

// Serve runs the server on the given transport until ctx is canceled.
// Only stdio is supported; stdout carries JSON-RPC exclusively.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("version", s.version))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	infos := make([]ToolInfo, len(toolDefs))
	for i, def := range toolDefs {
		infos[i] = ToolInfo{Name: def.name, Description: def.description}
	}
	return infos
}

// toolDefs is the registration order and the ListTools source of truth.
var toolDefs = []struct {
	name        string
	description string
}{
	{"search_npm_packages", "Search the npm registry for packages. Returns package names usable with get_npm_package_info and get_npm_component_data."},
	{"get_npm_package_info", "Get detailed metadata for one npm package: description, versions, dependencies, and whether it ships TypeScript types."},
	{"get_npm_component_data", "Extract UI component records from an npm package's README and metadata without indexing them. Find the package first via search_npm_packages or search_ui_libraries."},
	{"get_npm_readme", "Fetch the README of an npm package at a given version."},
	{"search_ui_libraries", "Search npm with UI component libraries prioritized: Material-UI, Ant Design, Chakra UI, Radix UI, and other known design systems rank first."},
	{"parse_storybook_url", "Parse a public Storybook site into component records without indexing them. Returns site metadata plus one record per story."},
	{"index_storybook_to_rag", "Parse a Storybook site and index its components into the vector store for semantic search. Unchanged components are skipped."},
	{"index_npm_package_to_rag", "Fetch an npm package and index its components into the vector store for semantic search. Unchanged components are skipped."},
	{"search_components_rag", "Semantic search over all indexed components. Describe what you need in natural language; filter by library, source kind, category, or tag."},
	{"get_rag_collection_stats", "Collection statistics: total indexed components plus per-library, per-source, and per-category counts."},
	{"clear_rag_collection", "Remove every indexed component. Destructive; requires confirm: true."},
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[0].name, Description: toolDefs[0].description}, s.handleSearchPackages)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[1].name, Description: toolDefs[1].description}, s.handlePackageInfo)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[2].name, Description: toolDefs[2].description}, s.handleComponentData)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[3].name, Description: toolDefs[3].description}, s.handleReadme)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[4].name, Description: toolDefs[4].description}, s.handleSearchUILibraries)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[5].name, Description: toolDefs[5].description}, s.handleParseStorybook)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[6].name, Description: toolDefs[6].description}, s.handleIndexStorybook)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[7].name, Description: toolDefs[7].description}, s.handleIndexPackage)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[8].name, Description: toolDefs[8].description}, s.handleSearchComponents)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[9].name, Description: toolDefs[9].description}, s.handleStats)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: toolDefs[10].name, Description: toolDefs[10].description}, s.handleClear)

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolDefs)))
}

// instrument logs tool start and returns a completion callback that
// logs duration and outcome under the same request ID.
func (s *Server) instrument(tool string, attrs ...slog.Attr) func(err error) {
	start := time.Now()
	requestID := generateRequestID()

	args := append([]any{slog.String("request_id", requestID)}, attrsToAny(attrs)...)
	s.logger.Info(tool+" started", args...)

	return func(err error) {
		duration := time.Since(start)
		if err != nil {
			s.logger.Error(tool+" failed",
				slog.String("request_id", requestID),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Info(tool+" completed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
	}
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

func (s *Server) handleSearchPackages(ctx context.Context, _ *mcp.CallToolRequest, input SearchPackagesInput) (
	*mcp.CallToolResult, SearchPackagesOutput, error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchPackagesOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	done := s.instrument("search_npm_packages", slog.String("query", input.Query))

	results, err := s.service.SearchPackages(ctx, input.Query, input.Limit)
	done(err)
	if err != nil {
		return nil, SearchPackagesOutput{}, MapError(err)
	}

	return nil, SearchPackagesOutput{
		Query:    input.Query,
		Total:    len(results),
		Packages: results,
	}, nil
}

func (s *Server) handlePackageInfo(ctx context.Context, _ *mcp.CallToolRequest, input PackageInfoInput) (
	*mcp.CallToolResult, PackageInfoOutput, error,
) {
	if input.Package == "" {
		return nil, PackageInfoOutput{}, NewInvalidParamsError("package parameter is required")
	}

	done := s.instrument("get_npm_package_info", slog.String("package", input.Package))

	output, err := s.service.PackageInfo(ctx, input.Package, input.Version)
	done(err)
	if err != nil {
		return nil, PackageInfoOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleComponentData(ctx context.Context, _ *mcp.CallToolRequest, input ComponentDataInput) (
	*mcp.CallToolResult, ComponentDataOutput, error,
) {
	if strings.TrimSpace(input.Package) == "" {
		return nil, ComponentDataOutput{}, NewInvalidParamsError(
			"package parameter is required; find one via search_npm_packages or search_ui_libraries first")
	}

	done := s.instrument("get_npm_component_data",
		slog.String("package", input.Package),
		slog.String("component", input.Component))

	output, err := s.service.ComponentData(ctx, input.Package, input.Version, input.Component)
	done(err)
	if err != nil {
		return nil, ComponentDataOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleReadme(ctx context.Context, _ *mcp.CallToolRequest, input ReadmeInput) (
	*mcp.CallToolResult, ReadmeOutput, error,
) {
	if input.Package == "" {
		return nil, ReadmeOutput{}, NewInvalidParamsError("package parameter is required")
	}

	done := s.instrument("get_npm_readme", slog.String("package", input.Package))

	readme, err := s.service.Readme(ctx, input.Package, input.Version)
	done(err)
	if err != nil {
		return nil, ReadmeOutput{}, MapError(err)
	}

	version := input.Version
	if version == "" {
		version = "latest"
	}
	return nil, ReadmeOutput{
		Package: input.Package,
		Version: version,
		Readme:  readme,
		Length:  len(readme),
	}, nil
}

func (s *Server) handleSearchUILibraries(ctx context.Context, _ *mcp.CallToolRequest, input SearchUILibrariesInput) (
	*mcp.CallToolResult, SearchUILibrariesOutput, error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchUILibrariesOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}

	done := s.instrument("search_ui_libraries", slog.String("query", input.Query))

	output, err := s.service.SearchUILibraries(ctx, input.Query, input.Limit)
	done(err)
	if err != nil {
		return nil, SearchUILibrariesOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleParseStorybook(ctx context.Context, _ *mcp.CallToolRequest, input ParseStorybookInput) (
	*mcp.CallToolResult, ParseStorybookOutput, error,
) {
	if input.URL == "" {
		return nil, ParseStorybookOutput{}, NewInvalidParamsError("url parameter is required")
	}

	done := s.instrument("parse_storybook_url", slog.String("url", input.URL))

	output, err := s.service.ParseStorybook(ctx, input.URL)
	done(err)
	if err != nil {
		return nil, ParseStorybookOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleIndexStorybook(ctx context.Context, _ *mcp.CallToolRequest, input IndexStorybookInput) (
	*mcp.CallToolResult, IndexOutput, error,
) {
	if input.URL == "" {
		return nil, IndexOutput{}, NewInvalidParamsError("url parameter is required")
	}

	done := s.instrument("index_storybook_to_rag", slog.String("url", input.URL))

	output, err := s.service.IndexStorybook(ctx, input.URL, input.Library)
	done(err)
	if err != nil {
		return nil, IndexOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleIndexPackage(ctx context.Context, _ *mcp.CallToolRequest, input IndexPackageInput) (
	*mcp.CallToolResult, IndexOutput, error,
) {
	if strings.TrimSpace(input.Package) == "" {
		return nil, IndexOutput{}, NewInvalidParamsError("package parameter is required")
	}

	done := s.instrument("index_npm_package_to_rag", slog.String("package", input.Package))

	output, err := s.service.IndexPackage(ctx, input.Package, input.Version)
	done(err)
	if err != nil {
		return nil, IndexOutput{}, MapError(err)
	}
	return nil, *output, nil
}

func (s *Server) handleSearchComponents(ctx context.Context, _ *mcp.CallToolRequest, input SearchComponentsInput) (
	*mcp.CallToolResult, SearchComponentsOutput, error,
) {
	done := s.instrument("search_components_rag", slog.String("query", input.Query))

	resp, err := s.service.SearchComponents(ctx, search.Query{
		Text: input.Query,
		TopK: input.TopK,
		Filter: store.Filter{
			Library:    input.Library,
			SourceKind: component.SourceKind(input.SourceKind),
			Category:   input.Category,
			Tag:        input.Tag,
		},
	})
	done(err)
	if err != nil {
		return nil, SearchComponentsOutput{}, MapError(err)
	}

	return nil, SearchComponentsOutput{
		Query: resp.Query,
		Total: resp.Total,
		Hits:  resp.Hits,
	}, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult, StatsOutput, error,
) {
	done := s.instrument("get_rag_collection_stats")

	stats, err := s.service.Stats(ctx)
	done(err)
	if err != nil {
		return nil, StatsOutput{}, MapError(err)
	}
	return nil, StatsOutput{Stats: stats}, nil
}

func (s *Server) handleClear(ctx context.Context, _ *mcp.CallToolRequest, input ClearInput) (
	*mcp.CallToolResult, ClearOutput, error,
) {
	if !input.Confirm {
		return nil, ClearOutput{}, NewInvalidParamsError(
			"clearing the collection is destructive; pass confirm: true to proceed")
	}

	done := s.instrument("clear_rag_collection")

	removed, err := s.service.Clear(ctx)
	done(err)
	if err != nil {
		return nil, ClearOutput{}, MapError(err)
	}
	return nil, ClearOutput{Removed: removed}, nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
