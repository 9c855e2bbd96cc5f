package model

// Extraction method provenance values recorded on a RawDocument.
const (
	MethodFirecrawl   = "firecrawl"
	MethodDirectFetch = "direct_fetch"
)

// ContentUnavailable is the sentinel substituted for article content that
// could not be extracted. Best-effort fetchers return it instead of an error.
const ContentUnavailable = "Content not available"

// RawDocument is the acquired content for a domain. It is owned by the job
// that produced it and is immutable once attached.
type RawDocument struct {
	SourceURL        string    `json:"source_url"`
	StatusCode       int       `json:"status_code,omitempty"` // zero on total fetch failure
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	BodyText         string    `json:"body_text"`
	Headings         []string  `json:"headings,omitempty"`
	InternalLinks    []string  `json:"internal_links,omitempty"`
	Subpages         []Subpage `json:"subpages,omitempty"`
	ExtractionMethod string    `json:"extraction_method"`
}

// Subpage is an opportunistically crawled same-site page.
type Subpage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
}

// NewsItem is one news mention of the subject, constructed once by the news
// source and never mutated afterward.
type NewsItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"` // best-effort; "recently" when unknown
	Content     string `json:"content"`      // extracted or feed summary; ContentUnavailable on failure
}

// LinkedInPresence is the professional-network probe result. Beyond the
// presence flag nothing is asserted; unavailable attributes stay at the
// "Not available" default.
type LinkedInPresence struct {
	CompanyURL    string `json:"company_url"`
	Found         bool   `json:"found"`
	EmployeeCount string `json:"employee_count"`
	Industry      string `json:"industry"`
}

// IndustryInsights holds short market-trend fragments with provenance.
type IndustryInsights struct {
	MarketSnippets []string `json:"market_snippets"`
	Source         string   `json:"source"`
}

// EnrichmentRecord aggregates external signals. Each field degrades
// independently; absence of one never blocks the others.
type EnrichmentRecord struct {
	NewsItems        []NewsItem        `json:"news_items,omitempty"`
	LinkedIn         *LinkedInPresence `json:"linkedin,omitempty"`
	IndustryInsights *IndustryInsights `json:"industry_insights,omitempty"`
}
