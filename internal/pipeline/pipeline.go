// Package pipeline orchestrates the domain analysis lifecycle: content
// acquisition, enrichment, intelligence generation, artifact publishing, and
// follow-up training generation. A job moves pending → scraping → analyzing →
// completed, with failed as the terminal state once the retry budget is
// exhausted.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/publish"
	"github.com/sells-group/domain-intel/internal/resilience"
	"github.com/sells-group/domain-intel/internal/store"
)

const (
	// defaultMaxAttempts is the whole-job retry budget. Any stage error
	// restarts the job from scraping.
	defaultMaxAttempts = 3

	// defaultRetryDelay is the fixed pause between attempts.
	defaultRetryDelay = 60 * time.Second

	// trainingTimeout bounds the detached training generation that runs
	// after a job completes.
	trainingTimeout = 5 * time.Minute

	// trainingDurationMinutes is the fixed estimated duration attached to
	// every generated training module.
	trainingDurationMinutes = 45
)

// Acquirer fetches a domain's raw content.
type Acquirer interface {
	Acquire(ctx context.Context, domain string) (*model.RawDocument, error)
}

// Enricher gathers external signals for a domain. It never fails.
type Enricher interface {
	Enrich(ctx context.Context, domain string) *model.EnrichmentRecord
}

// IntelGenerator produces the intelligence report and training content.
type IntelGenerator interface {
	GenerateIntelligence(ctx context.Context, domain string, doc *model.RawDocument, enrichment *model.EnrichmentRecord) (*model.Intelligence, error)
	GenerateTraining(ctx context.Context, domain string, report *model.Intelligence, spec model.TrainingSpec) (map[string]any, error)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithRetryPolicy overrides the whole-job retry attempt count and delay.
func WithRetryPolicy(maxAttempts int, delay time.Duration) Option {
	return func(p *Pipeline) {
		p.maxAttempts = maxAttempts
		p.retryDelay = delay
	}
}

// WithTrainingTimeout overrides the detached training generation deadline.
func WithTrainingTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.trainingTimeout = d }
}

// WithSynchronousTraining makes training generation run inline instead of in
// a detached goroutine (for testing).
func WithSynchronousTraining() Option {
	return func(p *Pipeline) { p.syncTraining = true }
}

// Pipeline runs analysis jobs end to end.
type Pipeline struct {
	store     store.Store
	acquirer  Acquirer
	enricher  Enricher
	generator IntelGenerator
	publisher publish.Publisher

	maxAttempts     int
	retryDelay      time.Duration
	trainingTimeout time.Duration
	syncTraining    bool
}

// New creates a Pipeline. The publisher may be nil, in which case artifact
// publishing is skipped entirely.
func New(st store.Store, acquirer Acquirer, enricher Enricher, generator IntelGenerator, publisher publish.Publisher, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:           st,
		acquirer:        acquirer,
		enricher:        enricher,
		generator:       generator,
		publisher:       publisher,
		maxAttempts:     defaultMaxAttempts,
		retryDelay:      defaultRetryDelay,
		trainingTimeout: trainingTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start creates a pending job for the domain. Caller input is reduced to the
// bare lowercase host before it is persisted, so "Example.COM/" and
// "example.com" name the same domain. The job is not processed until it is
// handed to Process (or a Dispatcher).
func (p *Pipeline) Start(ctx context.Context, domain string) (*model.AnalysisJob, error) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return nil, eris.New("pipeline: empty domain")
	}
	job, err := p.store.CreateJob(ctx, domain)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}
	zap.L().Info("pipeline: job created",
		zap.String("job_id", job.ID),
		zap.String("domain", domain),
	)
	return job, nil
}

// Process runs one job to a terminal state. Any stage error restarts the
// whole job after a fixed delay; once attempts are exhausted the job is
// marked failed and recorded in the dead letter queue.
func (p *Pipeline) Process(ctx context.Context, job *model.AnalysisJob) error {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("domain", job.DomainName))

	var attempt int
	var failedStage model.Stage

	cfg := resilience.FixedRetry(p.maxAttempts, p.retryDelay)
	cfg.OnRetry = resilience.RetryLogger("pipeline", "process job")

	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		attempt++
		stage, runErr := p.runOnce(ctx, job)
		if runErr != nil {
			failedStage = stage
			log.Warn("pipeline: attempt failed",
				zap.Int("attempt", attempt),
				zap.String("stage", string(stage)),
				zap.Error(runErr),
			)
		}
		return runErr
	})
	if err == nil {
		return nil
	}

	detail := err.Error()
	if markErr := p.store.MarkFailed(ctx, job.ID, detail); markErr != nil {
		log.Error("pipeline: mark failed", zap.Error(markErr))
	}
	if dlqErr := p.store.CreateDLQEntry(ctx, &resilience.DLQEntry{
		JobID:       job.ID,
		DomainName:  job.DomainName,
		Error:       detail,
		ErrorType:   resilience.ClassifyError(err),
		FailedStage: string(failedStage),
		RetryCount:  attempt,
		MaxRetries:  p.maxAttempts,
	}); dlqErr != nil {
		log.Error("pipeline: create dlq entry", zap.Error(dlqErr))
	}

	log.Error("pipeline: job failed", zap.Int("attempts", attempt), zap.Error(err))
	return eris.Wrap(err, "pipeline: job failed")
}

// runOnce executes one full pass over the job's stages. It returns the stage
// that was in progress when an error occurred.
func (p *Pipeline) runOnce(ctx context.Context, job *model.AnalysisJob) (model.Stage, error) {
	if err := p.store.UpdateJobStage(ctx, job.ID, model.StageScraping); err != nil {
		return model.StageScraping, err
	}

	doc, acquireErr := p.acquirer.Acquire(ctx, job.DomainName)
	p.recordScrapeLog(ctx, job.ID, job.DomainName, doc, acquireErr)
	if acquireErr != nil {
		return model.StageScraping, acquireErr
	}
	if err := p.store.AttachRawDocument(ctx, job.ID, doc); err != nil {
		return model.StageScraping, err
	}

	enrichment := p.enricher.Enrich(ctx, job.DomainName)
	if err := p.store.AttachEnrichment(ctx, job.ID, enrichment); err != nil {
		return model.StageScraping, err
	}

	if err := p.store.UpdateJobStage(ctx, job.ID, model.StageAnalyzing); err != nil {
		return model.StageAnalyzing, err
	}

	report, err := p.generator.GenerateIntelligence(ctx, job.DomainName, doc, enrichment)
	if err != nil {
		return model.StageAnalyzing, err
	}
	if err := p.store.AttachIntelligence(ctx, job.ID, report); err != nil {
		return model.StageAnalyzing, err
	}
	job.Intel = report

	p.publishArtifacts(ctx, job)

	if err := p.store.MarkCompleted(ctx, job.ID); err != nil {
		return model.StageAnalyzing, err
	}
	zap.L().Info("pipeline: job completed", zap.String("job_id", job.ID), zap.String("domain", job.DomainName))

	if p.syncTraining {
		p.generateTraining(ctx, job.ID, job.DomainName, report)
	} else {
		go func() {
			tctx, cancel := context.WithTimeout(context.Background(), p.trainingTimeout)
			defer cancel()
			p.generateTraining(tctx, job.ID, job.DomainName, report)
		}()
	}

	return model.StageCompleted, nil
}

// normalizeDomain lowercases caller input and strips any scheme, path, query,
// and trailing dots, leaving the bare host.
func normalizeDomain(input string) string {
	d := strings.ToLower(strings.TrimSpace(input))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if idx := strings.IndexAny(d, "/?#"); idx >= 0 {
		d = d[:idx]
	}
	return strings.TrimSuffix(d, ".")
}

// recordScrapeLog persists an acquisition attempt. Best-effort.
func (p *Pipeline) recordScrapeLog(ctx context.Context, jobID, domain string, doc *model.RawDocument, acquireErr error) {
	entry := &model.ScrapeLog{
		JobID:   jobID,
		URL:     domain,
		Success: acquireErr == nil,
	}
	if doc != nil {
		entry.URL = doc.SourceURL
		entry.StatusCode = doc.StatusCode
		entry.ContentLength = len(doc.BodyText)
	}
	if acquireErr != nil {
		entry.ErrorMessage = acquireErr.Error()
	}
	if err := p.store.CreateScrapeLog(ctx, entry); err != nil {
		zap.L().Warn("pipeline: record scrape log", zap.String("job_id", jobID), zap.Error(err))
	}
}

// publishArtifacts builds and uploads the job's artifacts. Each artifact is
// published independently; a failed upload is logged and skipped, and the job
// still completes with whatever references succeeded.
func (p *Pipeline) publishArtifacts(ctx context.Context, job *model.AnalysisJob) {
	if p.publisher == nil {
		return
	}
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("domain", job.DomainName))

	artifacts, err := publish.BuildArtifacts(job)
	if err != nil {
		log.Warn("pipeline: build artifacts", zap.Error(err))
		return
	}

	var refs []model.ArtifactRef
	for _, artifact := range artifacts {
		url, pubErr := p.publisher.Publish(ctx, artifact.Data, artifact.Name, artifact.ContentType)
		if pubErr != nil {
			log.Warn("pipeline: publish artifact",
				zap.String("artifact", artifact.Name),
				zap.Error(pubErr),
			)
			continue
		}
		refs = append(refs, model.ArtifactRef{
			Name:        artifact.Name,
			ContentType: artifact.ContentType,
			URL:         url,
		})
	}
	if len(refs) == 0 {
		return
	}
	if err := p.store.SetArtifactRefs(ctx, job.ID, refs); err != nil {
		log.Warn("pipeline: set artifact refs", zap.Error(err))
	}
}

// generateTraining produces the fixed set of training modules for a
// completed job. Each module is generated and stored independently; one
// failure never blocks the rest.
func (p *Pipeline) generateTraining(ctx context.Context, jobID, domain string, report *model.Intelligence) {
	log := zap.L().With(zap.String("job_id", jobID), zap.String("domain", domain))

	for _, spec := range model.DefaultTrainingSpecs() {
		content, err := p.generator.GenerateTraining(ctx, domain, report, spec)
		if err != nil {
			log.Warn("pipeline: training generation failed",
				zap.String("type", string(spec.Type)),
				zap.Error(err),
			)
			continue
		}
		module := &model.TrainingModule{
			JobID:           jobID,
			Title:           spec.Title,
			Type:            spec.Type,
			Difficulty:      spec.Difficulty,
			DurationMinutes: trainingDurationMinutes,
			Content:         content,
		}
		if err := p.store.CreateTrainingModule(ctx, module); err != nil {
			log.Warn("pipeline: store training module",
				zap.String("type", string(spec.Type)),
				zap.Error(err),
			)
		}
	}
	log.Info("pipeline: training generation finished")
}
