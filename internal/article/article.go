// Package article extracts the dominant textual content of a news or article
// page using a waterfall of heuristics of decreasing specificity.
package article

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/normalize"
)

const (
	// minContentLen is the minimum yield for a waterfall step to win.
	// Anything shorter is boilerplate (a nav link, a cookie banner).
	minContentLen = 100

	// contentCap bounds the extracted text attached to a NewsItem.
	contentCap = 800

	// indirectionHost is the news aggregator redirector. Links that never
	// escape it carry no article content.
	indirectionHost = "news.google.com"
)

// structuralSelector matches non-content tags removed before any text attempt.
const structuralSelector = "script, style, nav, footer, header, aside, iframe, form"

// classKeywords are article-ish class attribute fragments, most specific first.
var classKeywords = []string{
	"article-body",
	"article-content",
	"story-body",
	"post-content",
	"entry-content",
	"content-body",
	"main-content",
}

// idSelectors are article-ish element ids tried after class matching.
var idSelectors = []string{
	"#article-body",
	"#article",
	"#story",
	"#main-content",
	"#content",
}

// attempt records one waterfall step for diagnostics. Not persisted.
type attempt struct {
	method string
	length int
}

// Extractor fetches a URL and extracts its article text. Failures of any kind
// yield the model.ContentUnavailable sentinel; retry policy lives with the
// caller, not here.
type Extractor struct {
	client *http.Client
}

// NewExtractor creates an Extractor. A nil client gets a 15s-timeout default.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Extractor{client: client}
}

// Extract fetches targetURL and returns its article text, normalized and
// capped. On any failure it returns model.ContentUnavailable.
func (e *Extractor) Extract(ctx context.Context, targetURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return model.ContentUnavailable
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := e.client.Do(req)
	if err != nil {
		zap.L().Debug("article: fetch failed", zap.String("url", targetURL), zap.Error(err))
		return model.ContentUnavailable
	}
	defer func() { _ = resp.Body.Close() }()

	// Aggregator links are indirection pages. If following redirects never
	// escaped the redirector there is no article to extract.
	if isIndirection(targetURL) && resp.Request != nil && isIndirectionHost(resp.Request.URL.Host) {
		zap.L().Debug("article: link never escaped redirector", zap.String("url", targetURL))
		return model.ContentUnavailable
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		zap.L().Debug("article: non-success status",
			zap.String("url", targetURL),
			zap.Int("status", resp.StatusCode),
		)
		return model.ContentUnavailable
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.ContentUnavailable
	}

	text, attempts := extractFromDocument(doc)
	if text == "" {
		zap.L().Debug("article: all extraction steps failed",
			zap.String("url", targetURL),
			zap.Int("attempts", len(attempts)),
		)
		return model.ContentUnavailable
	}

	return normalize.Truncate(text, contentCap)
}

// extractFromDocument runs the heuristic waterfall over a parsed page.
// It returns the first normalized candidate of sufficient length, along with
// the per-step diagnostic trail.
func extractFromDocument(doc *goquery.Document) (string, []attempt) {
	doc.Find(structuralSelector).Remove()

	var attempts []attempt
	try := func(method, raw string) (string, bool) {
		text := normalize.Normalize(raw)
		attempts = append(attempts, attempt{method: method, length: len(text)})
		if len(text) >= minContentLen {
			return text, true
		}
		return "", false
	}

	// (a) The single clearly-marked article container.
	if text, ok := try("article_tag", doc.Find("article").First().Text()); ok {
		return text, attempts
	}

	// (b) Class-keyword containers.
	for _, kw := range classKeywords {
		sel := doc.Find(`[class*="` + kw + `"]`).First()
		if sel.Length() == 0 {
			continue
		}
		if text, ok := try("class_"+kw, sel.Text()); ok {
			return text, attempts
		}
	}

	// (c) Id-based containers.
	for _, id := range idSelectors {
		sel := doc.Find(id).First()
		if sel.Length() == 0 {
			continue
		}
		if text, ok := try("id_"+id, sel.Text()); ok {
			return text, attempts
		}
	}

	// (d) Paragraphs inside the article/main container.
	if text, ok := try("container_paragraphs", joinParagraphs(doc.Find("article p, main p"), 0)); ok {
		return text, attempts
	}

	// (e) Site-wide paragraphs, ignoring short boilerplate lines.
	if text, ok := try("all_paragraphs", joinParagraphs(doc.Find("p"), 30)); ok {
		return text, attempts
	}

	// (f) Whole body text; nav regions are already removed.
	if text, ok := try("body_text", doc.Find("body").Text()); ok {
		return text, attempts
	}

	return "", attempts
}

// joinParagraphs concatenates paragraph texts longer than minLen.
func joinParagraphs(sel *goquery.Selection, minLen int) string {
	var parts []string
	sel.Each(func(_ int, p *goquery.Selection) {
		t := strings.TrimSpace(p.Text())
		if len(t) > minLen {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func isIndirection(rawURL string) bool {
	return strings.Contains(rawURL, indirectionHost)
}

func isIndirectionHost(host string) bool {
	return host == indirectionHost || strings.HasSuffix(host, "."+indirectionHost)
}
