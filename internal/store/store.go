package store

import (
	"context"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/resilience"
)

// JobFilter specifies criteria for listing analysis jobs.
type JobFilter struct {
	Stage      model.Stage `json:"stage,omitempty"`
	DomainName string      `json:"domain_name,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, domainName string) (*model.AnalysisJob, error)
	GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error)
	UpdateJobStage(ctx context.Context, jobID string, stage model.Stage) error
	AttachRawDocument(ctx context.Context, jobID string, doc *model.RawDocument) error
	AttachEnrichment(ctx context.Context, jobID string, record *model.EnrichmentRecord) error
	AttachIntelligence(ctx context.Context, jobID string, intel *model.Intelligence) error
	SetArtifactRefs(ctx context.Context, jobID string, refs []model.ArtifactRef) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errorDetail string) error

	// Training modules
	CreateTrainingModule(ctx context.Context, module *model.TrainingModule) error
	ListTrainingModules(ctx context.Context, jobID string) ([]model.TrainingModule, error)

	// Observability
	CreateScrapeLog(ctx context.Context, log *model.ScrapeLog) error
	CreateDLQEntry(ctx context.Context, entry *resilience.DLQEntry) error
	ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
