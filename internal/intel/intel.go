// Package intel turns acquired content and enrichment signals into a
// structured business-intelligence report via an LLM, and generates sales
// training modules from that report.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/normalize"
	"github.com/sells-group/domain-intel/pkg/groq"
)

const (
	// contentPreviewCap bounds the body text included in the prompt.
	contentPreviewCap = 2000

	// newsSummaryCap bounds each news content summary in the prompt.
	newsSummaryCap = 200

	// promptSnippets is how many market snippets make it into the prompt.
	promptSnippets = 2

	systemMessage = "You are a business intelligence expert. Always respond with valid JSON."

	generationTemperature = 0.7
	generationMaxTokens   = 8000
)

// Generator produces intelligence reports and training content.
type Generator struct {
	llm groq.Client
}

// NewGenerator creates a Generator backed by the given LLM client.
func NewGenerator(llm groq.Client) *Generator {
	return &Generator{llm: llm}
}

// GenerateIntelligence builds the report prompt, calls the LLM, and parses
// the structured result.
func (g *Generator) GenerateIntelligence(ctx context.Context, domain string, doc *model.RawDocument, enrichment *model.EnrichmentRecord) (*model.Intelligence, error) {
	prompt := BuildPrompt(domain, doc, enrichment)

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "intel: generate report")
	}

	report, err := ParseIntelligence(raw)
	if err != nil {
		return nil, eris.Wrap(err, "intel: parse report")
	}

	zap.L().Info("intel: report generated", zap.String("domain", domain))
	return report, nil
}

// GenerateTraining produces the content for one training module.
func (g *Generator) GenerateTraining(ctx context.Context, domain string, report *model.Intelligence, spec model.TrainingSpec) (map[string]any, error) {
	prompt, err := BuildTrainingPrompt(domain, report, spec.Type)
	if err != nil {
		return nil, err
	}

	raw, err := g.complete(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("intel: generate %s training", spec.Type))
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(unwrapCodeFence(raw)), &content); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("intel: parse %s training", spec.Type))
	}
	return content, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	temp := generationTemperature
	maxTokens := generationMaxTokens

	resp, err := g.llm.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Messages: []groq.Message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("intel: completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt assembles the report prompt from the acquired document and
// enrichment signals.
func BuildPrompt(domain string, doc *model.RawDocument, enrichment *model.EnrichmentRecord) string {
	title := orNA(doc.Title)
	description := orNA(doc.Description)
	content := normalize.Truncate(doc.BodyText, contentPreviewCap)
	if content == "" {
		content = "N/A"
	}

	var newsSummary string
	if enrichment != nil && len(enrichment.NewsItems) > 0 {
		var b strings.Builder
		for i, item := range enrichment.NewsItems {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item.Title)
			if item.Content != "" && item.Content != model.ContentUnavailable {
				fmt.Fprintf(&b, "   Summary: %s\n", normalize.Truncate(item.Content, newsSummaryCap))
			}
			b.WriteString("\n")
		}
		newsSummary = strings.TrimRight(b.String(), "\n")
	} else {
		newsSummary = "No recent news available"
	}

	marketSnippets := "No market insights available"
	if enrichment != nil && enrichment.IndustryInsights != nil && len(enrichment.IndustryInsights.MarketSnippets) > 0 {
		snippets := enrichment.IndustryInsights.MarketSnippets
		if len(snippets) > promptSnippets {
			snippets = snippets[:promptSnippets]
		}
		var lines []string
		for _, s := range snippets {
			lines = append(lines, "- "+s)
		}
		marketSnippets = strings.Join(lines, "\n")
	}

	linkedinURL := "Not available"
	linkedinFound := false
	if enrichment != nil && enrichment.LinkedIn != nil && enrichment.LinkedIn.CompanyURL != "" {
		linkedinURL = enrichment.LinkedIn.CompanyURL
		linkedinFound = enrichment.LinkedIn.Found
	}

	return fmt.Sprintf(`You are a business intelligence and sales strategist AI.

Given the domain: %q

Website Information:
- Title: %s
- Description: %s
- Content Preview: %s

Recent News & Market Context:
%s

Industry Market Insights:
%s

LinkedIn: %s (Found: %t)

Generate a comprehensive structured business intelligence report including:

1. Industry overview (2-3 paragraphs)
2. Market size and growth trends (provide estimates with growth percentages)
3. Target customer segments (3-5 key segments)
4. Customer pain points (5-7 main pain points)
5. Buying behavior (decision-making process, budget cycles, key influencers)
6. Top competitors and their positioning (3-5 competitors with brief analysis)
7. Common sales objections (5-7 objections with responses)
8. Unique selling propositions (3-5 USPs)
9. Emerging opportunities in next 3-5 years (4-6 opportunities)
10. Recommended sales strategies (5-7 actionable strategies)
11. AI-driven automation opportunities (4-6 specific opportunities)
12. Sales team challenges - what challenges do sales people face when selling similar products/services? (5-7 specific challenges)
13. Sales upskilling recommendations - what skills, training, and knowledge do sales teams need to succeed? (5-7 actionable upskilling areas with specific training suggestions)

Output MUST be in valid JSON format following this exact structure:
{
  "industry_overview": "string",
  "market_size_and_trends": {
    "market_size": "string",
    "growth_rate": "string",
    "key_trends": "string"
  },
  "target_customer_segments": ["segment1", "segment2"],
  "customer_pain_points": ["pain1", "pain2"],
  "buying_behavior": {
    "decision_process": "string",
    "budget_cycle": "string",
    "key_influencers": "string"
  },
  "top_competitors": [
    {"name": "competitor1", "positioning": "string"}
  ],
  "common_objections": [
    {"objection": "string", "response": "string"}
  ],
  "unique_selling_propositions": ["usp1", "usp2"],
  "emerging_opportunities": ["opportunity1", "opportunity2"],
  "recommended_strategies": ["strategy1", "strategy2"],
  "ai_automation_opportunities": ["opportunity1", "opportunity2"],
  "sales_team_challenges": [
    {"challenge": "string", "impact": "string", "frequency": "string"}
  ],
  "sales_upskilling_recommendations": [
    {"skill_area": "string", "training_type": "string", "priority": "string", "expected_outcome": "string"}
  ]
}

Return ONLY valid JSON, no additional text.`,
		domain, title, description, content, newsSummary, marketSnippets, linkedinURL, linkedinFound)
}

// BuildTrainingPrompt assembles the prompt for one training module.
func BuildTrainingPrompt(domain string, report *model.Intelligence, trainingType model.TrainingType) (string, error) {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "intel: marshal report for training prompt")
	}

	return fmt.Sprintf(`You are an expert sales trainer and AI educator.

Based on this business intelligence for %q:
%s

Create a comprehensive %s training module for sales personnel.

The training should include:
1. Learning objectives (3-5 clear objectives)
2. Key concepts (main ideas salespeople need to understand)
3. Practical scenarios (2-3 real-world scenarios)
4. Practice exercises (interactive exercises)
5. Assessment questions (5-7 questions to test understanding)
6. Action items (specific steps to implement learning)

Return the response as valid JSON with this structure:
{
  "learning_objectives": ["objective1"],
  "key_concepts": ["concept1"],
  "scenarios": [
    {"situation": "string", "approach": "string", "outcome": "string"}
  ],
  "exercises": ["exercise1"],
  "assessment": [
    {"question": "string", "correct_answer": "string", "explanation": "string"}
  ],
  "action_items": ["action1"]
}

Return ONLY valid JSON.`, domain, reportJSON, trainingType), nil
}

// ParseIntelligence parses the LLM output into a report. Markdown code fences
// are stripped first; missing fields are backfilled with type-appropriate
// defaults. Malformed JSON is a hard error.
func ParseIntelligence(raw string) (*model.Intelligence, error) {
	var report model.Intelligence
	if err := json.Unmarshal([]byte(unwrapCodeFence(raw)), &report); err != nil {
		return nil, eris.Wrap(err, "invalid JSON in model response")
	}

	if report.IndustryOverview == "" {
		report.IndustryOverview = "No data available"
	}
	if report.MarketSizeAndTrends == nil {
		report.MarketSizeAndTrends = map[string]any{}
	}
	if report.BuyingBehavior == nil {
		report.BuyingBehavior = map[string]any{}
	}
	if report.TargetCustomerSegments == nil {
		report.TargetCustomerSegments = []string{}
	}
	if report.CustomerPainPoints == nil {
		report.CustomerPainPoints = []string{}
	}
	if report.TopCompetitors == nil {
		report.TopCompetitors = []map[string]any{}
	}
	if report.CommonObjections == nil {
		report.CommonObjections = []map[string]any{}
	}
	if report.UniqueSellingPropositions == nil {
		report.UniqueSellingPropositions = []string{}
	}
	if report.EmergingOpportunities == nil {
		report.EmergingOpportunities = []string{}
	}
	if report.RecommendedStrategies == nil {
		report.RecommendedStrategies = []string{}
	}
	if report.AIAutomationOpportunities == nil {
		report.AIAutomationOpportunities = []string{}
	}
	if report.SalesTeamChallenges == nil {
		report.SalesTeamChallenges = []map[string]any{}
	}
	if report.UpskillingRecommendations == nil {
		report.UpskillingRecommendations = []map[string]any{}
	}

	return &report, nil
}

// unwrapCodeFence strips a markdown code block around a JSON payload.
func unwrapCodeFence(s string) string {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
