package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/domain-intel/internal/model"
)

// defaultWorkers bounds concurrent job processing.
const defaultWorkers = 4

// defaultQueueDepth is the enqueue buffer before Enqueue starts rejecting.
const defaultQueueDepth = 64

// Dispatcher feeds queued jobs to a bounded pool of pipeline workers. Each
// job is enqueued once and handled by exactly one worker.
type Dispatcher struct {
	pipeline *Pipeline
	jobs     chan *model.AnalysisJob
	workers  int

	mu     sync.Mutex
	closed bool
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a Dispatcher around the given pipeline.
func NewDispatcher(p *Pipeline, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		pipeline: p,
		jobs:     make(chan *model.AnalysisJob, defaultQueueDepth),
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue hands a job to the worker pool. It returns false when the queue is
// full or closed.
func (d *Dispatcher) Enqueue(job *model.AnalysisJob) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		zap.L().Warn("dispatcher: closed, job rejected", zap.String("job_id", job.ID))
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		zap.L().Warn("dispatcher: queue full, job rejected", zap.String("job_id", job.ID))
		return false
	}
}

// Run processes queued jobs until the context is cancelled. Job-level errors
// are already persisted by the pipeline and do not stop the pool.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case job, ok := <-d.jobs:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				if err := d.pipeline.Process(gctx, job); err != nil {
					zap.L().Error("dispatcher: job processing failed",
						zap.String("job_id", job.ID),
						zap.Error(err),
					)
				}
				return nil
			})
		}
	}
}

// Close stops accepting new jobs. Run drains what is already queued and
// returns once the pool is idle. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.jobs)
}
