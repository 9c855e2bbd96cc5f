package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/acquire"
	"github.com/sells-group/domain-intel/internal/article"
	"github.com/sells-group/domain-intel/internal/enrich"
	"github.com/sells-group/domain-intel/internal/intel"
	"github.com/sells-group/domain-intel/internal/news"
	"github.com/sells-group/domain-intel/internal/pipeline"
	"github.com/sells-group/domain-intel/internal/publish"
	"github.com/sells-group/domain-intel/internal/store"
	"github.com/sells-group/domain-intel/pkg/firecrawl"
	"github.com/sells-group/domain-intel/pkg/groq"
)

// env bundles the wired pipeline and its backing store.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// initEnv wires all pipeline dependencies from the loaded configuration.
func initEnv(ctx context.Context) (*env, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	fc := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	llm := groq.NewClient(cfg.Groq.Key,
		groq.WithBaseURL(cfg.Groq.BaseURL),
		groq.WithModel(cfg.Groq.Model),
	)

	httpClient := &http.Client{Timeout: time.Duration(cfg.Scrape.TimeoutSecs) * time.Second}
	acquirer := acquire.NewAcquirer(fc, httpClient, acquire.WithSubpageCrawl(cfg.Scrape.CrawlSubpages))

	newsSource := news.NewSource(nil, article.NewExtractor(nil))
	enricher := enrich.NewAggregator(nil, newsSource)

	var publisher publish.Publisher
	if cfg.S3.Bucket != "" {
		s3Pub, pubErr := publish.NewS3Publisher(ctx, publish.S3Config{
			Bucket:  cfg.S3.Bucket,
			Region:  cfg.S3.Region,
			Prefix:  cfg.S3.Prefix,
			Profile: cfg.S3.Profile,
		})
		if pubErr != nil {
			st.Close() //nolint:errcheck
			return nil, eris.Wrap(pubErr, "init publisher")
		}
		publisher = s3Pub
	} else {
		zap.L().Info("artifact publishing disabled, no bucket configured")
	}

	p := pipeline.New(st, acquirer, enricher, intel.NewGenerator(llm), publisher,
		pipeline.WithRetryPolicy(cfg.Pipeline.MaxAttempts, cfg.Pipeline.RetryDelay()),
	)

	return &env{Store: st, Pipeline: p}, nil
}

// Close releases the environment's resources.
func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
