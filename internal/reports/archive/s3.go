package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	reports "metering-dashboard/internal/reports/domain"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

const defaultPresignTTL = 24 * time.Hour

// S3Store uploads artifacts to a bucket and returns a presigned download URL.
type S3Store struct {
	client    objectPutter
	presigner objectPresigner
	bucket    string
	prefix    string
	ttl       time.Duration
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithKeyPrefix prefixes every object key.
func WithKeyPrefix(prefix string) S3Option {
	return func(s *S3Store) {
		s.prefix = prefix
	}
}

// WithPresignTTL sets the download link lifetime.
func WithPresignTTL(ttl time.Duration) S3Option {
	return func(s *S3Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewS3Store loads the default AWS configuration for region.
func NewS3Store(ctx context.Context, region, bucket string, opts ...S3Option) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return newS3Store(client, s3.NewPresignClient(client), bucket, opts...)
}

func newS3Store(client objectPutter, presigner objectPresigner, bucket string, opts ...S3Option) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("archive: nil s3 client")
	}
	if bucket == "" {
		return nil, errors.New("archive: empty bucket")
	}
	store := &S3Store{client: client, presigner: presigner, bucket: bucket, ttl: defaultPresignTTL}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Put uploads the artifact.
func (s *S3Store) Put(ctx context.Context, scheduleID string, artifact reports.Artifact) (string, error) {
	if scheduleID == "" || artifact.Filename == "" {
		return "", errors.New("archive: empty schedule id or filename")
	}
	key := ObjectKey(s.prefix, scheduleID, artifact.Filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(artifact.Data),
		ContentType: aws.String(artifact.ContentType),
		Metadata: map[string]string{
			"schedule-id": scheduleID,
			"format":      string(artifact.Format),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: put object: %w", err)
	}
	if s.presigner == nil {
		return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
	}
	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.ttl
	})
	if err != nil {
		return "", fmt.Errorf("archive: presign: %w", err)
	}
	return presigned.URL, nil
}
