package storybook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxConcurrent = 8
	defaultRatePerSecond = 10
	maxResponseBytes     = 16 << 20

	// maxStoryPages bounds how many individual story pages get fetched
	// per site.
	maxStoryPages = 50
)

var (
	storybookGlobalRe = regexp.MustCompile(`window\.__STORYBOOK`)
	jsonObjectRe      = regexp.MustCompile(`(?s)\{.*\}`)
	sidebarClassRe    = regexp.MustCompile(`(?i)sidebar|navigation`)
	sidebarItemRe     = regexp.MustCompile(`(?i)item|story|component`)
)

// Parser fetches and parses storybook sites. Outbound policy matches
// the registry client: shared semaphore, rate limiter, circuit breaker,
// and retry with backoff.
type Parser struct {
	httpClient *http.Client
	timeout    time.Duration
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	breaker    *dexerrors.CircuitBreaker
	retryCfg   dexerrors.RetryConfig
	logger     *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Parser) { p.httpClient = hc }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) { p.timeout = d }
}

// WithMaxConcurrent bounds in-flight upstream calls.
func WithMaxConcurrent(n int64) Option {
	return func(p *Parser) { p.sem = semaphore.NewWeighted(n) }
}

// WithRateLimit sets the outbound request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(p *Parser) { p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg dexerrors.RetryConfig) Option {
	return func(p *Parser) { p.retryCfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// NewParser creates a storybook parser with default outbound policy.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		sem:        semaphore.NewWeighted(defaultMaxConcurrent),
		limiter:    rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultRatePerSecond*2),
		breaker:    dexerrors.NewCircuitBreaker("storybook"),
		retryCfg:   dexerrors.UpstreamRetryConfig(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse fetches a storybook URL and extracts its stories and site
// metadata. Individual story-page failures are logged and skipped;
// only a failure to load the main page fails the whole parse.
func (p *Parser) Parse(ctx context.Context, rawURL string) (*Site, error) {
	siteURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	html, err := p.fetchPage(ctx, siteURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, dexerrors.ParseError("failed to parse storybook HTML", err).
			WithDetail("url", siteURL)
	}

	site := &Site{
		URL:      siteURL,
		ParsedAt: time.Now().UTC(),
	}
	p.extractMetadata(doc, site)
	site.Stories = p.extractStories(ctx, doc, siteURL)

	return site, nil
}

// normalizeURL validates the input and defaults the scheme to https.
func normalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", dexerrors.New(dexerrors.ErrCodeInvalidURL, "storybook URL is required", nil)
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", dexerrors.New(dexerrors.ErrCodeInvalidURL,
			"invalid storybook URL: "+rawURL, err).WithDetail("url", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", dexerrors.New(dexerrors.ErrCodeInvalidURL,
			"storybook URL must be http or https", nil).WithDetail("url", rawURL)
	}

	return u.String(), nil
}

// extractMetadata pulls site-level metadata out of the main page.
func (p *Parser) extractMetadata(doc *goquery.Document, site *Site) {
	site.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if site.Title == "" {
		site.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		site.Description = strings.TrimSpace(desc)
	}

	if v, ok := doc.Find(`meta[name="storybook-version"]`).Attr("content"); ok {
		site.Version = strings.TrimSpace(v)
	}
}

// extractStories runs all four extraction strategies and dedupes the
// combined result by lowercase name, first occurrence winning.
func (p *Parser) extractStories(ctx context.Context, doc *goquery.Document, baseURL string) []Story {
	var stories []Story

	stories = append(stories, extractJSONLD(doc)...)
	stories = append(stories, extractStorybookGlobals(doc)...)
	stories = append(stories, p.fetchStoryPages(ctx, doc, baseURL)...)
	stories = append(stories, extractSidebar(doc, baseURL)...)

	seen := make(map[string]bool)
	unique := stories[:0]
	for _, story := range stories {
		key := strings.ToLower(story.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, story)
	}

	return unique
}

// extractJSONLD reads application/ld+json scripts that name a component.
func extractJSONLD(doc *goquery.Document) []Story {
	var stories []Story

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
		}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		if data.Name == "" {
			return
		}
		story := Story{
			Name:        data.Name,
			Description: data.Description,
			Source:      "jsonld",
		}
		if data.Category != "" {
			story.Tags = []string{data.Category}
		}
		stories = append(stories, story)
	})

	return stories
}

// extractStorybookGlobals parses window.__STORYBOOK_* script blobs.
func extractStorybookGlobals(doc *goquery.Document) []Story {
	var stories []Story

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if !storybookGlobalRe.MatchString(text) {
			return
		}

		blob := jsonObjectRe.FindString(text)
		if blob == "" {
			return
		}

		var data struct {
			Stories map[string]struct {
				Name        string `json:"name"`
				Title       string `json:"title"`
				Description string `json:"description"`
				Kind        string `json:"kind"`
			} `json:"stories"`
		}
		if err := json.Unmarshal([]byte(blob), &data); err != nil {
			return
		}

		// Map iteration order is random; keep output stable.
		ids := make([]string, 0, len(data.Stories))
		for id := range data.Stories {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			sd := data.Stories[id]
			name := sd.Name
			if name == "" {
				name = id
			}
			story := Story{
				ID:          id,
				Name:        name,
				Title:       sd.Title,
				Description: sd.Description,
				Source:      "script",
			}
			if sd.Kind != "" {
				story.Tags = []string{sd.Kind}
			}
			stories = append(stories, story)
		}
	})

	return stories
}

// fetchStoryPages follows story links from the main page, bounded at
// maxStoryPages, and parses each linked page.
func (p *Parser) fetchStoryPages(ctx context.Context, doc *goquery.Document, baseURL string) []Story {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var storyURLs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/story/") && !strings.Contains(href, "/?path=/story/") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if !seen[resolved] {
			seen[resolved] = true
			storyURLs = append(storyURLs, resolved)
		}
	})

	if len(storyURLs) > maxStoryPages {
		storyURLs = storyURLs[:maxStoryPages]
	}

	var stories []Story
	for _, storyURL := range storyURLs {
		story, err := p.parseStoryPage(ctx, storyURL)
		if err != nil {
			p.logger.Debug("skipping story page",
				slog.String("url", storyURL),
				slog.String("error", err.Error()))
			continue
		}
		stories = append(stories, *story)
	}

	return stories
}

// parseStoryPage extracts title, description, and a code snippet from
// one story page.
func (p *Parser) parseStoryPage(ctx context.Context, storyURL string) (*Story, error) {
	html, err := p.fetchPage(ctx, storyURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, dexerrors.ParseError("failed to parse story page", err).
			WithDetail("url", storyURL)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	name := title
	if idx := strings.Index(title, "|"); idx >= 0 {
		name = strings.TrimSpace(title[:idx])
	}

	description, _ := doc.Find(`meta[name="description"]`).Attr("content")

	var snippet string
	doc.Find("pre, code, script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, "export") || strings.Contains(text, "function") || strings.Contains(text, "const") {
			if len(text) > 500 {
				text = text[:500]
			}
			snippet = text
			return false
		}
		return true
	})

	return &Story{
		Name:        name,
		Title:       title,
		Description: strings.TrimSpace(description),
		Snippet:     snippet,
		URL:         storyURL,
		Source:      "story-page",
	}, nil
}

// extractSidebar walks storybook navigation markup for component items.
func extractSidebar(doc *goquery.Document, baseURL string) []Story {
	sidebar := doc.Find("nav").First()
	if sidebar.Length() == 0 {
		doc.Find("div[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			class, _ := s.Attr("class")
			if sidebarClassRe.MatchString(class) {
				sidebar = s
				return false
			}
			return true
		})
	}
	if sidebar.Length() == 0 {
		return nil
	}

	base, _ := url.Parse(baseURL)

	var stories []Story
	sidebar.Find("a, button, div").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if !sidebarItemRe.MatchString(class) {
			return
		}
		text := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if text == "" || (href == "" && !strings.Contains(strings.ToLower(text), "story")) {
			return
		}

		story := Story{
			Name:   text,
			Source: "navigation",
		}
		if href != "" && base != nil {
			if ref, err := url.Parse(href); err == nil {
				story.URL = base.ResolveReference(ref).String()
			}
		}
		stories = append(stories, story)
	})

	return stories
}

// fetchPage performs one GET with the full outbound policy and returns
// the body as a string.
func (p *Parser) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return dexerrors.RetryWithResult(ctx, p.retryCfg, func() (string, error) {
		return dexerrors.CircuitExecute(p.breaker, func() (string, error) {
			return p.doGet(ctx, pageURL)
		})
	})
}

// doGet is one HTTP attempt with status mapping into the error taxonomy.
func (p *Parser) doGet(ctx context.Context, pageURL string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", dexerrors.New(dexerrors.ErrCodeInvalidURL, "invalid storybook URL", err).
			WithDetail("url", pageURL)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", dexerrors.New(dexerrors.ErrCodeNetworkTimeout,
				"storybook request timed out", err).WithDetail("url", pageURL)
		}
		return "", dexerrors.New(dexerrors.ErrCodeNetworkUnavailable,
			"storybook site unreachable", err).WithDetail("url", pageURL)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", dexerrors.NotFoundError("storybook page not found", nil).
			WithDetail("url", pageURL)

	case resp.StatusCode == http.StatusTooManyRequests:
		rlErr := dexerrors.New(dexerrors.ErrCodeRateLimited,
			"storybook site rate limit exceeded", nil).WithDetail("url", pageURL)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			rlErr = rlErr.WithDetail(dexerrors.DetailRetryAfter, ra)
		}
		return "", rlErr

	case resp.StatusCode >= 500:
		return "", dexerrors.New(dexerrors.ErrCodeUpstreamError,
			fmt.Sprintf("storybook site returned %d", resp.StatusCode), nil).
			WithDetail("url", pageURL)

	case resp.StatusCode != http.StatusOK:
		return "", dexerrors.ValidationError(
			fmt.Sprintf("storybook site rejected request with %d", resp.StatusCode), nil).
			WithDetail("url", pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", dexerrors.New(dexerrors.ErrCodeNetworkUnavailable,
			"failed reading storybook response", err)
	}

	return string(body), nil
}
