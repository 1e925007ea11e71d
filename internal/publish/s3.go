// Package publish uploads run outputs to S3.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher copies local output files to a bucket under a key prefix.
type S3Publisher struct {
	client s3API
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Publisher loads the default AWS configuration for region and creates a publisher.
func NewS3Publisher(ctx context.Context, bucket, prefix, region string, log *slog.Logger) (*S3Publisher, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Publisher(s3.NewFromConfig(cfg), bucket, prefix, log), nil
}

func newS3Publisher(client s3API, bucket, prefix string, log *slog.Logger) *S3Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Key returns the object key for a local file.
func (p *S3Publisher) Key(path string) string {
	return p.prefix + filepath.Base(path)
}

// Publish uploads each file in order and stops at the first failure.
func (p *S3Publisher) Publish(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		key := p.Key(path)
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}
		p.log.Debug("published", "bucket", p.bucket, "key", key, "bytes", len(data))
	}
	return nil
}
