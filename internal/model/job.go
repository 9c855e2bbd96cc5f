package model

import "time"

// Stage represents the current state of an analysis job.
//
// Valid transitions: pending → scraping → analyzing → completed, with
// failed reachable from scraping or analyzing once the retry budget is
// exhausted. Completed and failed are terminal.
type Stage string

const (
	StagePending   Stage = "pending"
	StageScraping  Stage = "scraping"
	StageAnalyzing Stage = "analyzing"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Terminal returns true once the job can no longer progress.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// AnalysisJob identifies one domain-analysis run.
type AnalysisJob struct {
	ID          string            `json:"id"`
	DomainName  string            `json:"domain_name"`
	Stage       Stage             `json:"stage"`
	RawDocument *RawDocument      `json:"raw_document,omitempty"`
	Enrichment  *EnrichmentRecord `json:"enrichment,omitempty"`
	Intel       *Intelligence     `json:"intelligence,omitempty"`
	Artifacts   []ArtifactRef     `json:"artifacts,omitempty"`
	ErrorDetail string            `json:"error_detail,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ArtifactRef locates one published artifact.
type ArtifactRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// ScrapeLog records a single acquisition attempt for observability.
type ScrapeLog struct {
	ID            string    `json:"id"`
	JobID         string    `json:"job_id"`
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code,omitempty"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ContentLength int       `json:"content_length"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrainingType categorizes generated sales-training content.
type TrainingType string

const (
	TrainingObjectionHandling  TrainingType = "objection_handling"
	TrainingProductKnowledge   TrainingType = "product_knowledge"
	TrainingPitchStrategy      TrainingType = "pitch_strategy"
	TrainingCompetitorAnalysis TrainingType = "competitor_analysis"
)

// TrainingModule is one generated sales-training unit attached to a job.
type TrainingModule struct {
	ID              string         `json:"id"`
	JobID           string         `json:"job_id"`
	Title           string         `json:"title"`
	Type            TrainingType   `json:"type"`
	Difficulty      string         `json:"difficulty"`
	DurationMinutes int            `json:"duration_minutes"`
	Content         map[string]any `json:"content"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TrainingSpec describes one training module to generate.
type TrainingSpec struct {
	Type       TrainingType
	Title      string
	Difficulty string
}

// DefaultTrainingSpecs returns the fixed set of training modules generated
// after a job completes.
func DefaultTrainingSpecs() []TrainingSpec {
	return []TrainingSpec{
		{Type: TrainingObjectionHandling, Title: "Objection Handling", Difficulty: "intermediate"},
		{Type: TrainingProductKnowledge, Title: "Product Knowledge Training", Difficulty: "beginner"},
		{Type: TrainingPitchStrategy, Title: "Sales Pitch Strategy", Difficulty: "intermediate"},
		{Type: TrainingCompetitorAnalysis, Title: "Competitor Analysis", Difficulty: "advanced"},
	}
}
