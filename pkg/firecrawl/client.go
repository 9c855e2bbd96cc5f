// Package firecrawl provides a client for the Firecrawl scrape/crawl API.
//
// Response shapes differ across provider versions: newer deployments wrap the
// page in a {success, data} envelope while older ones return the page mapping
// directly, with metadata either nested or inlined. All of that is normalized
// once, here, at the ingress boundary; callers only ever see PageData.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-intel/internal/resilience"
)

// Default base URL for the Firecrawl v1 API.
const defaultBaseURL = "https://api.firecrawl.dev/v1"

// ErrUnconfigured is returned when the client was built without an API key.
// Callers treat it like any other provider failure and fall back.
var ErrUnconfigured = eris.New("firecrawl: api key not configured")

// Client defines the Firecrawl API operations.
type Client interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
	Crawl(ctx context.Context, req CrawlRequest) (*CrawlResponse, error)
	GetCrawlStatus(ctx context.Context, id string) (*CrawlStatusResponse, error)
}

// ScrapeRequest is the body for POST /scrape.
type ScrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats,omitempty"`
}

// ScrapeResponse is the response from POST /scrape, normalized from either
// the enveloped or the flat mapping form.
type ScrapeResponse struct {
	Success bool
	Data    PageData
}

// UnmarshalJSON accepts both {"success":true,"data":{...}} and a bare page
// mapping {"markdown":...,"metadata":{...}}.
func (r *ScrapeResponse) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		r.Success = envelope.Success == nil || *envelope.Success
		return json.Unmarshal(envelope.Data, &r.Data)
	}

	if err := json.Unmarshal(data, &r.Data); err != nil {
		return err
	}
	r.Success = envelope.Success == nil || *envelope.Success
	return nil
}

// CrawlRequest is the body for POST /crawl.
type CrawlRequest struct {
	URL      string `json:"url"`
	MaxDepth int    `json:"maxDepth,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// CrawlResponse is the response from POST /crawl.
type CrawlResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// CrawlStatusResponse is the response from GET /crawl/{id}.
type CrawlStatusResponse struct {
	Status string     `json:"status"`
	Total  int        `json:"total"`
	Data   []PageData `json:"data"`
}

// PageData is the canonical shape for one scraped page. Metadata fields may
// arrive nested under "metadata" or inlined at the top level; nested wins.
type PageData struct {
	URL           string
	SourceURL     string
	Markdown      string
	HTML          string
	Title         string
	Description   string
	OGTitle       string
	OGDescription string
	Keywords      string
	Language      string
	StatusCode    int
}

// UnmarshalJSON normalizes the varying page shapes into PageData.
func (p *PageData) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL         string         `json:"url"`
		Markdown    string         `json:"markdown"`
		HTML        string         `json:"html"`
		Title       string         `json:"title"`
		Description string         `json:"description"`
		StatusCode  int            `json:"statusCode"`
		Metadata    map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.URL = raw.URL
	p.Markdown = raw.Markdown
	p.HTML = raw.HTML
	p.Title = raw.Title
	p.Description = raw.Description
	p.StatusCode = raw.StatusCode

	m := raw.Metadata
	if v := metaString(m, "title"); v != "" {
		p.Title = v
	}
	if v := metaString(m, "description"); v != "" {
		p.Description = v
	}
	p.OGTitle = metaString(m, "ogTitle")
	p.OGDescription = metaString(m, "ogDescription")
	p.Keywords = metaString(m, "keywords")
	p.Language = metaString(m, "language")
	p.SourceURL = metaString(m, "sourceURL")
	if p.SourceURL == "" {
		p.SourceURL = raw.URL
	}
	if p.StatusCode == 0 {
		if code, ok := m["statusCode"].(float64); ok {
			p.StatusCode = int(code)
		}
	}

	return nil
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// APIError is returned when Firecrawl responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firecrawl: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Firecrawl client. An empty apiKey yields a client
// whose calls return ErrUnconfigured.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	if c.apiKey == "" {
		return nil, ErrUnconfigured
	}
	var resp ScrapeResponse
	if err := c.post(ctx, "/scrape", req, &resp); err != nil {
		return nil, eris.Wrap(err, "firecrawl: scrape")
	}
	return &resp, nil
}

func (c *httpClient) Crawl(ctx context.Context, req CrawlRequest) (*CrawlResponse, error) {
	if c.apiKey == "" {
		return nil, ErrUnconfigured
	}
	var resp CrawlResponse
	if err := c.post(ctx, "/crawl", req, &resp); err != nil {
		return nil, eris.Wrap(err, "firecrawl: start crawl")
	}
	return &resp, nil
}

func (c *httpClient) GetCrawlStatus(ctx context.Context, id string) (*CrawlStatusResponse, error) {
	if c.apiKey == "" {
		return nil, ErrUnconfigured
	}
	var resp CrawlStatusResponse
	if err := c.get(ctx, fmt.Sprintf("/crawl/%s", id), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("firecrawl: get crawl status %s", id))
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
		// Rate limits and server-side failures are tagged transient so the
		// dead letter queue classifies them as retryable.
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
