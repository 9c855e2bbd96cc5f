// Package acquire obtains the raw web content for a domain. The remote
// extraction provider is tried first; when it is unconfigured, unreachable,
// or yields too little content, a direct fetch of the site takes over. The
// winning path is recorded on the document as its extraction method.
package acquire

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/normalize"
	"github.com/sells-group/domain-intel/internal/resilience"
	"github.com/sells-group/domain-intel/pkg/firecrawl"
)

const (
	// minBodyLen is the minimum body yield for an acquisition path to count.
	minBodyLen = 100

	// bodyCap bounds the main body text attached to a document.
	bodyCap = 5000

	// subpageCap bounds per-subpage content.
	subpageCap = 1000

	maxHeadings = 20
	maxLinks    = 10
	maxSubpages = 5
)

// browser UA; some sites refuse the default Go client string.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// structuralSelector matches non-content tags removed before text extraction.
const structuralSelector = "script, style, nav, footer, header, aside, iframe, form"

// Option configures the Acquirer.
type Option func(*Acquirer)

// WithSubpageCrawl toggles the opportunistic subpage crawl.
func WithSubpageCrawl(enabled bool) Option {
	return func(a *Acquirer) { a.crawlSubpages = enabled }
}

// WithPollOptions sets the crawl polling options (for testing).
func WithPollOptions(opts ...firecrawl.PollOption) Option {
	return func(a *Acquirer) { a.pollOpts = opts }
}

// WithCircuitBreaker overrides the provider circuit breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Acquirer) { a.breaker = cb }
}

// Acquirer fetches a domain's content.
type Acquirer struct {
	fc            firecrawl.Client
	http          *http.Client
	breaker       *resilience.CircuitBreaker
	crawlSubpages bool
	pollOpts      []firecrawl.PollOption
}

// NewAcquirer creates an Acquirer. A nil http client gets a 30s-timeout
// default. Provider calls run through a circuit breaker so a flapping
// provider degrades to direct fetch without waiting out each timeout.
func NewAcquirer(fc firecrawl.Client, client *http.Client, opts ...Option) *Acquirer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	a := &Acquirer{
		fc:            fc,
		http:          client,
		breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		crawlSubpages: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire fetches the domain's content, preferring the extraction provider
// and falling back to a direct fetch. It errors only when both paths fail.
func (a *Acquirer) Acquire(ctx context.Context, domain string) (*model.RawDocument, error) {
	targetURL := ensureScheme(domain)

	doc, fcErr := a.fromProvider(ctx, targetURL)
	if fcErr == nil {
		if a.crawlSubpages {
			doc.Subpages = a.crawlSubpageContent(ctx, targetURL)
		}
		zap.L().Info("acquire: provider extraction succeeded",
			zap.String("domain", domain),
			zap.Int("body_len", len(doc.BodyText)),
			zap.Int("subpages", len(doc.Subpages)),
		)
		return doc, nil
	}
	zap.L().Warn("acquire: provider extraction failed, falling back to direct fetch",
		zap.String("domain", domain),
		zap.Error(fcErr),
	)

	doc, directErr := a.fromDirectFetch(ctx, targetURL)
	if directErr != nil {
		return nil, eris.Wrap(directErr, "acquire: all extraction paths failed")
	}
	zap.L().Info("acquire: direct fetch succeeded",
		zap.String("domain", domain),
		zap.Int("body_len", len(doc.BodyText)),
	)
	return doc, nil
}

// fromProvider scrapes the page through the extraction provider. Markdown is
// preferred; a raw HTML payload is parsed like a direct fetch would parse it.
func (a *Acquirer) fromProvider(ctx context.Context, targetURL string) (*model.RawDocument, error) {
	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return a.fc.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:     targetURL,
			Formats: []string{"markdown", "html"},
		})
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("acquire: provider reported failure")
	}

	page := resp.Data
	doc := &model.RawDocument{
		SourceURL:        targetURL,
		StatusCode:       page.StatusCode,
		Title:            firstNonEmpty(page.Title, page.OGTitle),
		Description:      firstNonEmpty(page.Description, page.OGDescription),
		ExtractionMethod: model.MethodFirecrawl,
	}

	if body := normalize.Normalize(page.Markdown); len(body) > minBodyLen {
		doc.BodyText = normalize.Truncate(body, bodyCap)
		return doc, nil
	}

	if page.HTML != "" {
		parsed, parseErr := parseHTML(strings.NewReader(page.HTML), targetURL)
		if parseErr == nil && len(parsed.BodyText) > minBodyLen {
			parsed.SourceURL = targetURL
			parsed.StatusCode = page.StatusCode
			parsed.Title = firstNonEmpty(parsed.Title, doc.Title)
			parsed.Description = firstNonEmpty(parsed.Description, doc.Description)
			parsed.ExtractionMethod = model.MethodFirecrawl
			return parsed, nil
		}
	}

	// Last resort: the provider's short-form text, unmodified.
	if short := firstNonEmpty(normalize.Normalize(page.Markdown), doc.Description); short != "" {
		doc.BodyText = short
		return doc, nil
	}

	return nil, eris.New("acquire: provider returned insufficient content")
}

// crawlSubpageContent starts a bounded crawl and collects subpage content.
// Best-effort: any failure yields an empty slice.
func (a *Acquirer) crawlSubpageContent(ctx context.Context, targetURL string) []model.Subpage {
	crawl, err := a.fc.Crawl(ctx, firecrawl.CrawlRequest{
		URL:      targetURL,
		MaxDepth: 1,
		Limit:    maxSubpages,
	})
	if err != nil || !crawl.Success {
		zap.L().Debug("acquire: subpage crawl unavailable", zap.Error(err))
		return nil
	}

	status, err := firecrawl.PollCrawl(ctx, a.fc, crawl.ID, a.pollOpts...)
	if err != nil {
		zap.L().Debug("acquire: subpage crawl did not complete", zap.Error(err))
		return nil
	}

	var subpages []model.Subpage
	for _, page := range status.Data {
		if len(subpages) >= maxSubpages {
			break
		}
		pageURL := firstNonEmpty(page.SourceURL, page.URL)
		if pageURL == "" || strings.TrimRight(pageURL, "/") == strings.TrimRight(targetURL, "/") {
			continue
		}
		content := normalize.Normalize(page.Markdown)
		if content == "" {
			continue
		}
		subpages = append(subpages, model.Subpage{
			URL:     pageURL,
			Title:   page.Title,
			Content: normalize.Truncate(content, subpageCap),
		})
	}
	return subpages
}

// fromDirectFetch fetches the page itself and parses it.
func (a *Acquirer) fromDirectFetch(ctx context.Context, targetURL string) (*model.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: direct fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("acquire: direct fetch returned status %d", resp.StatusCode)
	}

	doc, err := parseHTML(resp.Body, targetURL)
	if err != nil {
		return nil, err
	}
	doc.SourceURL = targetURL
	doc.StatusCode = resp.StatusCode
	doc.ExtractionMethod = model.MethodDirectFetch
	return doc, nil
}

// parseHTML extracts title, description, headings, body text, and same-host
// links from an HTML document.
func parseHTML(r io.Reader, targetURL string) (*model.RawDocument, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: parse html")
	}

	doc := &model.RawDocument{
		Title:       normalize.Normalize(gq.Find("title").First().Text()),
		Description: metaDescription(gq),
	}

	gq.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h := normalize.Normalize(sel.Text()); h != "" {
			doc.Headings = append(doc.Headings, h)
		}
		return len(doc.Headings) < maxHeadings
	})

	doc.InternalLinks = sameHostLinks(gq, targetURL)

	gq.Find(structuralSelector).Remove()
	doc.BodyText = normalize.Truncate(normalize.Normalize(gq.Find("body").Text()), bodyCap)

	return doc, nil
}

// metaDescription prefers the standard meta description over og:description.
func metaDescription(gq *goquery.Document) string {
	if desc, ok := gq.Find(`meta[name="description"]`).First().Attr("content"); ok && desc != "" {
		return normalize.Normalize(desc)
	}
	if desc, ok := gq.Find(`meta[property="og:description"]`).First().Attr("content"); ok && desc != "" {
		return normalize.Normalize(desc)
	}
	return ""
}

// sameHostLinks collects deduplicated absolute links on the page's own host.
func sameHostLinks(gq *goquery.Document, targetURL string) []string {
	base, err := url.Parse(targetURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	gq.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, parseErr := url.Parse(strings.TrimSpace(href))
		if parseErr != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host || abs.Scheme == "" {
			return true
		}
		abs.Fragment = ""
		link := abs.String()
		if link == targetURL {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		links = append(links, link)
		return len(links) < maxLinks
	})
	return links
}

// ensureScheme prefixes bare domains with https.
func ensureScheme(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
