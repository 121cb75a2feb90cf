package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// DefaultBaseURL is the public npm registry.
const DefaultBaseURL = "https://registry.npmjs.org"

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxConcurrent = 8
	defaultRatePerSecond = 10
	maxResponseBytes     = 32 << 20 // packuments for large packages run tens of MB
)

// Client is the npm registry source client. All outbound calls share
// one semaphore, one rate limiter, and one circuit breaker, so a batch
// of indexing jobs cannot stampede the registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	breaker    *dexerrors.CircuitBreaker
	retryCfg   dexerrors.RetryConfig
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different registry (mirrors, test servers).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxConcurrent bounds in-flight upstream calls.
func WithMaxConcurrent(n int64) Option {
	return func(c *Client) { c.sem = semaphore.NewWeighted(n) }
}

// WithRateLimit sets the outbound request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg dexerrors.RetryConfig) Option {
	return func(c *Client) { c.retryCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an npm registry client with default policy:
// 30s per-call timeout, 8 concurrent calls, 10 req/s, upstream retry
// with 200ms exponential backoff.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		sem:        semaphore.NewWeighted(defaultMaxConcurrent),
		limiter:    rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultRatePerSecond*2),
		breaker:    dexerrors.NewCircuitBreaker("npm-registry"),
		retryCfg:   dexerrors.UpstreamRetryConfig(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// PackageMetadata fetches the package-level view of a packument.
func (c *Client) PackageMetadata(ctx context.Context, name string) (*PackageMetadata, error) {
	p, err := c.fetchPackument(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.metadata(), nil
}

// PackageInfo fetches one version's manifest. An empty version means
// whatever "latest" points at.
func (c *Client) PackageInfo(ctx context.Context, name, version string) (*PackageInfo, error) {
	p, err := c.fetchPackument(ctx, name)
	if err != nil {
		return nil, err
	}

	resolved := version
	if resolved == "" {
		resolved = p.DistTags["latest"]
	}

	manifest, ok := p.Versions[resolved]
	if !ok {
		return nil, dexerrors.NotFoundError(
			fmt.Sprintf("version %s of package %s not found", resolved, name), nil).
			WithDetail("package", name).
			WithDetail("version", resolved)
	}

	return manifest.info(), nil
}

// Readme fetches the README text for a package. Falls back from the
// version-level readme to the packument-level one; packages without a
// README return an empty string, not an error.
func (c *Client) Readme(ctx context.Context, name, version string) (string, error) {
	p, err := c.fetchPackument(ctx, name)
	if err != nil {
		return "", err
	}

	if version != "" {
		if manifest, ok := p.Versions[version]; ok && manifest.Readme != "" {
			return manifest.Readme, nil
		}
	}

	return p.Readme, nil
}

// Search queries the registry full-text search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("text", query)
	params.Set("size", fmt.Sprintf("%d", limit))

	body, err := c.get(ctx, "/-/v1/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, dexerrors.ParseError("registry search returned malformed JSON", err).
			WithDetail("query", query)
	}

	results := make([]SearchResult, 0, len(resp.Objects))
	for _, obj := range resp.Objects {
		results = append(results, SearchResult{
			Name:        obj.Package.Name,
			Version:     obj.Package.Version,
			Description: obj.Package.Description,
			Keywords:    obj.Package.Keywords,
			Date:        obj.Package.Date,
			Publisher:   obj.Package.Publisher.Username,
			Score:       obj.Score.Final,
		})
	}

	return results, nil
}

// fetchPackument retrieves and decodes GET /{name}.
func (c *Client) fetchPackument(ctx context.Context, name string) (*packument, error) {
	if name == "" {
		return nil, dexerrors.ValidationError("package name is required", nil)
	}

	// Scoped names (@scope/pkg) need the slash escaped.
	body, err := c.get(ctx, "/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	var p packument
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, dexerrors.ParseError("registry returned malformed packument", err).
			WithDetail("package", name)
	}

	return &p, nil
}

// get performs one GET against the registry with the full outbound
// policy: semaphore, rate limit, circuit breaker, retry with backoff.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := dexerrors.RetryWithResult(ctx, c.retryCfg, func() ([]byte, error) {
		return dexerrors.CircuitExecute(c.breaker, func() ([]byte, error) {
			return c.doGet(ctx, path)
		})
	})

	if err != nil {
		c.logger.Warn("registry request failed",
			slog.String("path", path),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return nil, err
	}

	c.logger.Debug("registry request",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)),
		slog.Int("bytes", len(body)))
	return body, nil
}

// doGet is one HTTP attempt. Status codes map to the error taxonomy:
// 404 is definitive, 429 carries the Retry-After hint, 5xx and network
// failures are retryable.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, dexerrors.ValidationError("invalid registry request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, dexerrors.New(dexerrors.ErrCodeNetworkTimeout,
				"registry request timed out", err).WithDetail("url", c.baseURL+path)
		}
		return nil, dexerrors.New(dexerrors.ErrCodeNetworkUnavailable,
			"registry unreachable", err).WithDetail("url", c.baseURL+path)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, dexerrors.NotFoundError("package not found in registry", nil).
			WithDetail("url", c.baseURL+path)

	case resp.StatusCode == http.StatusTooManyRequests:
		rlErr := dexerrors.New(dexerrors.ErrCodeRateLimited,
			"registry rate limit exceeded", nil).
			WithDetail("url", c.baseURL+path)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			rlErr = rlErr.WithDetail(dexerrors.DetailRetryAfter, ra)
		}
		return nil, rlErr

	case resp.StatusCode >= 500:
		return nil, dexerrors.New(dexerrors.ErrCodeUpstreamError,
			fmt.Sprintf("registry returned %d", resp.StatusCode), nil).
			WithDetail("url", c.baseURL+path)

	case resp.StatusCode != http.StatusOK:
		return nil, dexerrors.ValidationError(
			fmt.Sprintf("registry rejected request with %d", resp.StatusCode), nil).
			WithDetail("url", c.baseURL+path)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeNetworkUnavailable,
			"failed reading registry response", err)
	}

	return body, nil
}
