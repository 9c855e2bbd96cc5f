// Package enrich gathers external signals about a domain: recent news,
// LinkedIn presence, and industry snippets from web search. The three lookups
// run concurrently and are individually best-effort; a failure in one leaves
// its section at defaults without touching the others.
package enrich

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/normalize"
)

const (
	defaultLinkedInBaseURL = "https://www.linkedin.com"
	defaultSearchBaseURL   = "https://www.google.com"

	// snippetSelector matches search-result text blocks.
	snippetSelector = "div.BNeawe"

	// minSnippetLen filters out labels and navigation fragments.
	minSnippetLen = 50

	maxSnippets = 3
	snippetCap  = 200

	// notAvailable fills fields no probe can populate.
	notAvailable = "Not available"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// NewsFetcher yields recent news items for a subject.
type NewsFetcher interface {
	FetchNews(ctx context.Context, subject string) []model.NewsItem
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithLinkedInBaseURL overrides the LinkedIn base URL (for testing).
func WithLinkedInBaseURL(u string) Option {
	return func(a *Aggregator) { a.linkedinBaseURL = u }
}

// WithSearchBaseURL overrides the web search base URL (for testing).
func WithSearchBaseURL(u string) Option {
	return func(a *Aggregator) { a.searchBaseURL = u }
}

// Aggregator collects enrichment signals for a domain.
type Aggregator struct {
	http            *http.Client
	news            NewsFetcher
	linkedinBaseURL string
	searchBaseURL   string
}

// NewAggregator creates an Aggregator. A nil client gets a 15s-timeout
// default.
func NewAggregator(client *http.Client, news NewsFetcher, opts ...Option) *Aggregator {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	a := &Aggregator{
		http:            client,
		news:            news,
		linkedinBaseURL: defaultLinkedInBaseURL,
		searchBaseURL:   defaultSearchBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enrich runs the three signal lookups concurrently and returns whatever was
// found. It never fails: missing signals come back as zero values or
// "Not available" defaults.
func (a *Aggregator) Enrich(ctx context.Context, domain string) *model.EnrichmentRecord {
	subject := CompanyName(domain)
	record := &model.EnrichmentRecord{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record.NewsItems = a.news.FetchNews(gctx, subject)
		return nil
	})
	g.Go(func() error {
		record.LinkedIn = a.probeLinkedIn(gctx, subject)
		return nil
	})
	g.Go(func() error {
		record.IndustryInsights = a.fetchIndustrySnippets(gctx, subject)
		return nil
	})
	_ = g.Wait() // goroutines never return errors; isolation is per-signal

	zap.L().Info("enrich: signals gathered",
		zap.String("domain", domain),
		zap.Int("news_items", len(record.NewsItems)),
		zap.Bool("linkedin_found", record.LinkedIn.Found),
		zap.Int("industry_snippets", len(record.IndustryInsights.MarketSnippets)),
	)
	return record
}

// probeLinkedIn checks whether the canonical company page exists. The URL is
// always recorded so downstream consumers can link out even on a miss.
func (a *Aggregator) probeLinkedIn(ctx context.Context, subject string) *model.LinkedInPresence {
	presence := &model.LinkedInPresence{
		CompanyURL:    a.linkedinBaseURL + "/company/" + subject,
		EmployeeCount: notAvailable,
		Industry:      notAvailable,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presence.CompanyURL, nil)
	if err != nil {
		return presence
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		zap.L().Debug("enrich: linkedin probe failed", zap.String("subject", subject), zap.Error(err))
		return presence
	}
	defer func() { _ = resp.Body.Close() }()

	presence.Found = resp.StatusCode == http.StatusOK
	return presence
}

// fetchIndustrySnippets scrapes search-result text blocks for market context.
func (a *Aggregator) fetchIndustrySnippets(ctx context.Context, subject string) *model.IndustryInsights {
	insights := &model.IndustryInsights{Source: notAvailable}

	searchURL := a.searchBaseURL + "/search?q=" + url.QueryEscape(subject+" industry market trends")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return insights
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		zap.L().Debug("enrich: industry search failed", zap.String("subject", subject), zap.Error(err))
		return insights
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return insights
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return insights
	}

	doc.Find(snippetSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := normalize.Normalize(sel.Text())
		if len(text) > minSnippetLen {
			insights.MarketSnippets = append(insights.MarketSnippets, normalize.Truncate(text, snippetCap))
		}
		return len(insights.MarketSnippets) < maxSnippets
	})

	if len(insights.MarketSnippets) > 0 {
		insights.Source = "Web Search"
	}
	return insights
}

// CompanyName derives the likely company name from a domain: strip any
// scheme and www prefix, then take the leftmost label.
func CompanyName(domain string) string {
	name := strings.TrimSpace(strings.ToLower(domain))
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "www.")
	if idx := strings.IndexAny(name, "/?#"); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.Index(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}
