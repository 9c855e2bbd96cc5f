package model

// Intelligence is the structured business-intelligence report produced by the
// generation capability. Field names mirror the JSON contract of the model
// prompt; missing fields are backfilled with type-appropriate empty defaults
// before this struct is populated.
type Intelligence struct {
	IndustryOverview          string           `json:"industry_overview"`
	MarketSizeAndTrends       map[string]any   `json:"market_size_and_trends"`
	TargetCustomerSegments    []string         `json:"target_customer_segments"`
	CustomerPainPoints        []string         `json:"customer_pain_points"`
	BuyingBehavior            map[string]any   `json:"buying_behavior"`
	TopCompetitors            []map[string]any `json:"top_competitors"`
	CommonObjections          []map[string]any `json:"common_objections"`
	UniqueSellingPropositions []string         `json:"unique_selling_propositions"`
	EmergingOpportunities     []string         `json:"emerging_opportunities"`
	RecommendedStrategies     []string         `json:"recommended_strategies"`
	AIAutomationOpportunities []string         `json:"ai_automation_opportunities"`
	SalesTeamChallenges       []map[string]any `json:"sales_team_challenges"`
	UpskillingRecommendations []map[string]any `json:"sales_upskilling_recommendations"`
}
