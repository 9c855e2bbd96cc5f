// Package publish uploads derived artifacts to durable object storage and
// returns their public URLs.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Publisher stores one artifact and returns its durable URL.
type Publisher interface {
	Publish(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// ObjectPutter is the slice of the S3 API the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 publisher.
type S3Config struct {
	Bucket string
	Region string
	// Prefix is prepended to every object key, e.g. "reports".
	Prefix string
	// Profile selects a named shared config profile. Empty means the default
	// credential chain.
	Profile string
}

// S3Publisher implements Publisher on top of S3.
type S3Publisher struct {
	client ObjectPutter
	cfg    S3Config
}

// NewS3Publisher creates a publisher using the default AWS configuration
// chain with optional overrides.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, eris.New("publish: s3 bucket not configured")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "publish: load aws config")
	}
	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}

	return &S3Publisher{client: s3.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// NewS3PublisherWithClient wires an existing client (for testing).
func NewS3PublisherWithClient(client ObjectPutter, cfg S3Config) *S3Publisher {
	return &S3Publisher{client: client, cfg: cfg}
}

// Publish uploads the artifact and returns its URL.
func (p *S3Publisher) Publish(ctx context.Context, data []byte, name, contentType string) (string, error) {
	key := path.Join(p.cfg.Prefix, name)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("publish: upload %s", key))
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
	zap.L().Info("publish: artifact uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return url, nil
}

// ObjectName builds a stable, timestamped object name for a domain artifact.
func ObjectName(domain, suffix string) string {
	safe := strings.NewReplacer("/", "-", ":", "-", " ", "-").Replace(strings.ToLower(domain))
	return fmt.Sprintf("%s/%s-%s%s", safe, safe, time.Now().UTC().Format("20060102-150405"), suffix)
}
