// Package news discovers recent news mentions of a subject via the Google
// News RSS feed, falling back to an HTML search scrape when the feed is
// unavailable or empty. News enrichment is best-effort and never fails the
// caller.
package news

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/article"
	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/normalize"
)

const (
	defaultBaseURL = "https://news.google.com"

	// maxItems bounds the news items returned per subject.
	maxItems = 5

	// minExtractedLen is the threshold below which extracted article text is
	// replaced by the feed's own description.
	minExtractedLen = 100

	// minDescriptionLen is the minimum feed description worth substituting.
	minDescriptionLen = 50

	// publishedRecently is the sentinel timestamp when no date is available.
	publishedRecently = "recently"
)

// Option configures the Source.
type Option func(*Source)

// WithFeedBaseURL overrides the RSS feed base URL (for testing).
func WithFeedBaseURL(u string) Option {
	return func(s *Source) { s.feedBaseURL = u }
}

// WithSearchBaseURL overrides the HTML search base URL (for testing).
func WithSearchBaseURL(u string) Option {
	return func(s *Source) { s.searchBaseURL = u }
}

// Source fetches news mentions for a subject.
type Source struct {
	client        *http.Client
	parser        *gofeed.Parser
	extractor     *article.Extractor
	feedBaseURL   string
	searchBaseURL string
}

// NewSource creates a Source. A nil client gets a 15s-timeout default.
func NewSource(client *http.Client, extractor *article.Extractor, opts ...Option) *Source {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client

	s := &Source{
		client:        client,
		parser:        parser,
		extractor:     extractor,
		feedBaseURL:   defaultBaseURL,
		searchBaseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchNews returns up to five news items for the subject, most recent first
// as delivered by the feed. Failures at every layer degrade to an empty
// slice.
func (s *Source) FetchNews(ctx context.Context, subject string) []model.NewsItem {
	items := s.fetchFromFeed(ctx, subject)
	if len(items) > 0 {
		return items
	}

	zap.L().Debug("news: feed yielded nothing, trying html search", zap.String("subject", subject))
	return s.fetchFromSearch(ctx, subject)
}

// fetchFromFeed queries the RSS search feed and extracts article content for
// each entry.
func (s *Source) fetchFromFeed(ctx context.Context, subject string) []model.NewsItem {
	feedURL := s.feedBaseURL + "/rss/search?q=" + url.QueryEscape(subject+" company") + "&hl=en-US&gl=US&ceid=US:en"

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		zap.L().Warn("news: feed parse failed", zap.String("subject", subject), zap.Error(err))
		return nil
	}

	var items []model.NewsItem
	for _, entry := range feed.Items {
		if len(items) >= maxItems {
			break
		}
		if entry.Link == "" {
			continue
		}

		content := s.extractor.Extract(ctx, entry.Link)
		if content == model.ContentUnavailable || len(content) < minExtractedLen {
			if desc := normalize.Normalize(entry.Description); len(desc) > minDescriptionLen {
				content = normalize.Truncate(desc, 800)
			} else {
				content = model.ContentUnavailable
			}
		}

		items = append(items, model.NewsItem{
			Title:       strings.TrimSpace(entry.Title),
			URL:         entry.Link,
			Source:      publisherFromTitle(entry.Title),
			PublishedAt: publishedAt(entry),
			Content:     content,
		})
	}

	zap.L().Info("news: feed fetch complete",
		zap.String("subject", subject),
		zap.Int("items", len(items)),
	)
	return items
}

// fetchFromSearch scrapes the HTML search surface for result-like containers
// and builds minimal items.
func (s *Source) fetchFromSearch(ctx context.Context, subject string) []model.NewsItem {
	searchURL := s.searchBaseURL + "/search?q=" + url.QueryEscape(subject+" company")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		zap.L().Warn("news: html search failed", zap.String("subject", subject), zap.Error(err))
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil
	}

	base, err := url.Parse(searchURL)
	if err != nil {
		return nil
	}

	var items []model.NewsItem
	doc.Find("article").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a").First()
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok {
			return true
		}

		itemURL := href
		if ref, parseErr := url.Parse(href); parseErr == nil {
			itemURL = base.ResolveReference(ref).String()
		}

		published := publishedRecently
		if dt, exists := sel.Find("time").First().Attr("datetime"); exists && dt != "" {
			published = dt
		}

		items = append(items, model.NewsItem{
			Title:       title,
			URL:         itemURL,
			Source:      "Google News",
			PublishedAt: published,
			Content:     s.extractor.Extract(ctx, itemURL),
		})
		return len(items) < maxItems
	})

	zap.L().Info("news: html search complete",
		zap.String("subject", subject),
		zap.Int("items", len(items)),
	)
	return items
}

// publisherFromTitle pulls the publisher off an aggregator headline of the
// form "Headline - Publisher".
func publisherFromTitle(title string) string {
	if idx := strings.LastIndex(title, " - "); idx > 0 && idx+3 < len(title) {
		return strings.TrimSpace(title[idx+3:])
	}
	return "Google News"
}

// publishedAt formats the entry timestamp, degrading to the raw feed string
// and finally to the "recently" sentinel.
func publishedAt(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.Format("Jan 2, 2006")
	}
	if entry.Published != "" {
		return entry.Published
	}
	return publishedRecently
}
