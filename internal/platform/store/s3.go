package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Store persists state in an S3-compatible object store, one object per
// key. Compare-and-swap relies on conditional writes: the current object's
// ETag is captured on read and replayed via If-Match, so a concurrent writer
// makes the precondition fail server-side.
type S3Store struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// S3Options configures the S3-backed store.
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// NewS3Store creates a store backed by the given bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})

	prefix := opts.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{s3: client, bucket: opts.Bucket, prefix: prefix}, nil
}

// objectKey maps a store key to its object name under the configured prefix.
func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := s.getWithETag(ctx, key)
	return value, err
}

func (s *S3Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) CompareAndSwap(ctx context.Context, key string, expected, value []byte) error {
	put := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	}

	if expected == nil {
		// Create-if-absent.
		put.IfNoneMatch = aws.String("*")
	} else {
		current, etag, err := s.getWithETag(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrCASMismatch
			}
			return err
		}
		if !bytes.Equal(current, expected) {
			return ErrCASMismatch
		}
		put.IfMatch = aws.String(etag)
	}

	if _, err := s.s3.PutObject(ctx, put); err != nil {
		if isPreconditionFailed(err) {
			return ErrCASMismatch
		}
		return fmt.Errorf("failed to swap %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.prefix))
		}
	}
	return keys, nil
}

func (s *S3Store) getWithETag(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, aws.ToString(out.ETag), nil
}

func isNoSuchKey(err error) bool {
	return hasAPIErrorCode(err, "NoSuchKey", "NotFound")
}

func isPreconditionFailed(err error) bool {
	return hasAPIErrorCode(err, "PreconditionFailed")
}

// hasAPIErrorCode checks smithy API error codes. S3-compatible services do
// not always return the exact SDK error types, so codes are matched by name.
func hasAPIErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
