package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Tier is the optional write-behind destination for blobs flagged
// is_large_blob (SPEC_FULL §4.9 expansion), feature-flagged off by default
// (Options.FeatureFlags.S3LargeBlobTier).
type S3Tier struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Tier builds a tier against bucket using the default AWS credential
// chain (env vars, shared config, instance role).
func NewS3Tier(ctx context.Context, bucket string) (*S3Tier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Tier{
		bucket:   bucket,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put uploads data under key, write-through-style.
func (t *S3Tier) Put(ctx context.Context, key string, data []byte) error {
	_, err := t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("cache: s3 put %s: %w", key, err)
	}
	return nil
}

// Get downloads the object at key, reporting ok=false if it does not exist.
func (t *S3Tier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("cache: s3 read body %s: %w", key, err)
	}
	return data, true, nil
}
