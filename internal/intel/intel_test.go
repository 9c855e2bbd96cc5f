package intel

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/pkg/groq"
)

// stubLLM implements groq.Client.
type stubLLM struct {
	response string
	err      error
	lastReq  groq.ChatCompletionRequest
}

func (s *stubLLM) ChatCompletion(ctx context.Context, req groq.ChatCompletionRequest) (*groq.ChatCompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &groq.ChatCompletionResponse{
		ID: "cmpl-1",
		Choices: []groq.Choice{
			{Message: groq.Message{Role: "assistant", Content: s.response}},
		},
	}, nil
}

const minimalReport = `{
	"industry_overview": "Robotics is growing.",
	"top_competitors": [{"name": "RoboCorp", "positioning": "premium"}]
}`

func TestParseIntelligence_BackfillsMissingFields(t *testing.T) {
	t.Parallel()
	report, err := ParseIntelligence(minimalReport)
	require.NoError(t, err)

	assert.Equal(t, "Robotics is growing.", report.IndustryOverview)
	require.Len(t, report.TopCompetitors, 1)
	assert.Equal(t, "RoboCorp", report.TopCompetitors[0]["name"])

	// Everything the model omitted is present with an empty default.
	assert.NotNil(t, report.MarketSizeAndTrends)
	assert.NotNil(t, report.BuyingBehavior)
	assert.NotNil(t, report.TargetCustomerSegments)
	assert.NotNil(t, report.CustomerPainPoints)
	assert.NotNil(t, report.CommonObjections)
	assert.NotNil(t, report.UniqueSellingPropositions)
	assert.NotNil(t, report.EmergingOpportunities)
	assert.NotNil(t, report.RecommendedStrategies)
	assert.NotNil(t, report.AIAutomationOpportunities)
	assert.NotNil(t, report.SalesTeamChallenges)
	assert.NotNil(t, report.UpskillingRecommendations)
}

func TestParseIntelligence_EmptyOverviewGetsPlaceholder(t *testing.T) {
	t.Parallel()
	report, err := ParseIntelligence(`{}`)
	require.NoError(t, err)
	assert.Equal(t, "No data available", report.IndustryOverview)
}

func TestParseIntelligence_CodeFences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n" + minimalReport + "\n```"},
		{"bare fence", "```\n" + minimalReport + "\n```"},
		{"fence with preamble", "Here is the report:\n```json\n" + minimalReport + "\n```\nDone."},
		{"no fence", minimalReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseIntelligence(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "Robotics is growing.", report.IndustryOverview)
		})
	}
}

func TestParseIntelligence_MalformedJSON(t *testing.T) {
	t.Parallel()
	_, err := ParseIntelligence("the model rambled instead of emitting JSON")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()
	doc := &model.RawDocument{
		Title:       "Acme Robotics",
		Description: "Industrial robots",
		BodyText:    "We build robots for factories.",
	}
	enrichment := &model.EnrichmentRecord{
		NewsItems: []model.NewsItem{
			{Title: "Acme raises round", Content: "Acme announced a large funding round to expand production."},
			{Title: "Dead link story", Content: model.ContentUnavailable},
		},
		LinkedIn: &model.LinkedInPresence{
			CompanyURL: "https://www.linkedin.com/company/acme",
			Found:      true,
		},
		IndustryInsights: &model.IndustryInsights{
			MarketSnippets: []string{"snippet one", "snippet two", "snippet three"},
			Source:         "Web Search",
		},
	}

	prompt := BuildPrompt("acme.com", doc, enrichment)

	assert.Contains(t, prompt, `"acme.com"`)
	assert.Contains(t, prompt, "Title: Acme Robotics")
	assert.Contains(t, prompt, "1. Acme raises round")
	assert.Contains(t, prompt, "Summary: Acme announced a large funding round")
	// Unavailable content gets no summary line.
	assert.Contains(t, prompt, "2. Dead link story")
	assert.NotContains(t, prompt, "Summary: Content not available")
	// Only the first two snippets are included.
	assert.Contains(t, prompt, "- snippet one")
	assert.Contains(t, prompt, "- snippet two")
	assert.NotContains(t, prompt, "snippet three")
	assert.Contains(t, prompt, "https://www.linkedin.com/company/acme (Found: true)")
}

func TestBuildPrompt_EmptyInputs(t *testing.T) {
	t.Parallel()
	prompt := BuildPrompt("acme.com", &model.RawDocument{}, nil)

	assert.Contains(t, prompt, "Title: N/A")
	assert.Contains(t, prompt, "Description: N/A")
	assert.Contains(t, prompt, "No recent news available")
	assert.Contains(t, prompt, "No market insights available")
	assert.Contains(t, prompt, "LinkedIn: Not available (Found: false)")
}

func TestBuildPrompt_ContentPreviewCapped(t *testing.T) {
	t.Parallel()
	long := make([]byte, contentPreviewCap*2)
	for i := range long {
		long[i] = 'x'
	}
	prompt := BuildPrompt("acme.com", &model.RawDocument{BodyText: string(long)}, nil)
	// The body contribution is capped; only the preview appears.
	assert.NotContains(t, prompt, string(long))
	assert.Contains(t, prompt, string(long[:contentPreviewCap]))
}

func TestBuildPrompt_TruncationIsRuneSafe(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("é", contentPreviewCap+50)
	summary := strings.Repeat("ü", newsSummaryCap+50)

	prompt := BuildPrompt("acme.com", &model.RawDocument{BodyText: body}, &model.EnrichmentRecord{
		NewsItems: []model.NewsItem{{Title: "Umlauts abound", Content: summary}},
	})

	// Caps are applied per rune, never splitting a multi-byte character.
	assert.True(t, utf8.ValidString(prompt))
	assert.NotContains(t, prompt, body)
	assert.Contains(t, prompt, strings.Repeat("é", contentPreviewCap))
	assert.NotContains(t, prompt, summary)
	assert.Contains(t, prompt, "Summary: "+strings.Repeat("ü", newsSummaryCap)+"...")
}

func TestGenerateIntelligence(t *testing.T) {
	llm := &stubLLM{response: "```json\n" + minimalReport + "\n```"}
	g := NewGenerator(llm)

	report, err := g.GenerateIntelligence(context.Background(), "acme.com", &model.RawDocument{Title: "Acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Robotics is growing.", report.IndustryOverview)

	require.Len(t, llm.lastReq.Messages, 2)
	assert.Equal(t, "system", llm.lastReq.Messages[0].Role)
	require.NotNil(t, llm.lastReq.Temperature)
	assert.InDelta(t, generationTemperature, *llm.lastReq.Temperature, 0.001)
	require.NotNil(t, llm.lastReq.MaxTokens)
	assert.Equal(t, generationMaxTokens, *llm.lastReq.MaxTokens)
}

func TestGenerateIntelligence_MalformedResponse(t *testing.T) {
	llm := &stubLLM{response: "not json at all"}
	g := NewGenerator(llm)

	_, err := g.GenerateIntelligence(context.Background(), "acme.com", &model.RawDocument{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse report")
}

func TestGenerateTraining(t *testing.T) {
	content := map[string]any{
		"learning_objectives": []any{"Understand objections"},
		"key_concepts":        []any{"Active listening"},
	}
	raw, err := json.Marshal(content)
	require.NoError(t, err)

	llm := &stubLLM{response: string(raw)}
	g := NewGenerator(llm)

	report := &model.Intelligence{IndustryOverview: "Robotics."}
	got, err := g.GenerateTraining(context.Background(), "acme.com", report, model.TrainingSpec{
		Type:  model.TrainingObjectionHandling,
		Title: "Objection Handling",
	})
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// The report itself is embedded in the prompt.
	assert.Contains(t, llm.lastReq.Messages[1].Content, "Robotics.")
	assert.Contains(t, llm.lastReq.Messages[1].Content, "objection_handling")
}

func TestGenerateTraining_MalformedResponse(t *testing.T) {
	llm := &stubLLM{response: "```\nnope\n```"}
	g := NewGenerator(llm)

	_, err := g.GenerateTraining(context.Background(), "acme.com", &model.Intelligence{}, model.TrainingSpec{
		Type: model.TrainingPitchStrategy,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pitch_strategy")
}
