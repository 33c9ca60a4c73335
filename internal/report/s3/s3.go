// Package s3 publishes run artifacts to an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/carta/internal/config"
)

// API defines the S3 operations used by the publisher.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads files under a key prefix.
type Publisher struct {
	client API
	bucket string
	prefix string
}

// New creates a publisher from configuration using the default AWS chain.
func New(ctx context.Context, cfg config.S3Config) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a publisher around an existing client.
func NewWithClient(client API, bucket, prefix string) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a local file.
func (p *Publisher) Key(file string) string {
	return path.Join(p.prefix, filepath.Base(file))
}

// Publish uploads the file at file.
func (p *Publisher) Publish(ctx context.Context, file string) error {
	f, err := os.Open(file) // #nosec G304 -- artifact path from config
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.Key(file)),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", p.bucket, p.Key(file), err)
	}

	log.Info().Str("bucket", p.bucket).Str("key", p.Key(file)).Msg("Published artifact")
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
