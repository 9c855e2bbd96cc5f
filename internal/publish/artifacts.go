package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/domain-intel/internal/model"
)

// Artifact is one renderable output of a completed analysis.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// BuildArtifacts renders the publishable outputs for a job: the full JSON
// bundle and a human-readable markdown report.
func BuildArtifacts(job *model.AnalysisJob) ([]Artifact, error) {
	if job.Intel == nil {
		return nil, eris.New("publish: job has no intelligence to render")
	}

	bundle := map[string]any{
		"domain":                job.DomainName,
		"raw_document":          job.RawDocument,
		"enrichment":            job.Enrichment,
		"business_intelligence": job.Intel,
		"generated_at":          time.Now().UTC().Format(time.RFC3339),
	}
	jsonData, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "publish: marshal json bundle")
	}

	return []Artifact{
		{
			Name:        ObjectName(job.DomainName, ".json"),
			ContentType: "application/json",
			Data:        jsonData,
		},
		{
			Name:        ObjectName(job.DomainName, ".md"),
			ContentType: "text/markdown",
			Data:        []byte(renderMarkdown(job.DomainName, job.Intel)),
		},
	}, nil
}

// renderMarkdown produces the report document.
func renderMarkdown(domain string, report *model.Intelligence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Business Intelligence Report: %s\n\n", domain)

	b.WriteString("## Industry Overview\n\n")
	b.WriteString(report.IndustryOverview + "\n\n")

	writeMapSection(&b, "Market Size & Trends", report.MarketSizeAndTrends)
	writeListSection(&b, "Target Customer Segments", report.TargetCustomerSegments)
	writeListSection(&b, "Customer Pain Points", report.CustomerPainPoints)
	writeMapSection(&b, "Buying Behavior", report.BuyingBehavior)
	writeEntrySection(&b, "Top Competitors", report.TopCompetitors, "name", "positioning")
	writeEntrySection(&b, "Common Objections", report.CommonObjections, "objection", "response")
	writeListSection(&b, "Unique Selling Propositions", report.UniqueSellingPropositions)
	writeListSection(&b, "Emerging Opportunities", report.EmergingOpportunities)
	writeListSection(&b, "Recommended Strategies", report.RecommendedStrategies)
	writeListSection(&b, "AI Automation Opportunities", report.AIAutomationOpportunities)
	writeEntrySection(&b, "Sales Team Challenges", report.SalesTeamChallenges, "challenge", "impact")
	writeEntrySection(&b, "Sales Upskilling Recommendations", report.UpskillingRecommendations, "skill_area", "training_type")

	return b.String()
}

func writeListSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeMapSection(b *strings.Builder, title string, m map[string]any) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for k, v := range m {
		fmt.Fprintf(b, "- **%s**: %v\n", strings.ReplaceAll(k, "_", " "), v)
	}
	b.WriteString("\n")
}

func writeEntrySection(b *strings.Builder, title string, entries []map[string]any, headKey, bodyKey string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, entry := range entries {
		head, _ := entry[headKey].(string)
		body, _ := entry[bodyKey].(string)
		if head == "" {
			continue
		}
		if body != "" {
			fmt.Fprintf(b, "- **%s**: %s\n", head, body)
		} else {
			fmt.Fprintf(b, "- **%s**\n", head)
		}
	}
	b.WriteString("\n")
}
