package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vitalstats/lens/pkg/retry"
)

// Source provides the raw dataset bytes for a load.
type Source interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// ParseSource builds a Source from a location string: an s3://bucket/key
// URL or a local file path.
func ParseSource(ctx context.Context, location string) (Source, error) {
	if strings.HasPrefix(location, "s3://") {
		rest := strings.TrimPrefix(location, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid s3 location %q, expected s3://bucket/key", location)
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return &S3Source{
			Client: s3.NewFromConfig(cfg),
			Bucket: bucket,
			Key:    key,
			Retry:  retry.DefaultConfig(),
		}, nil
	}
	return FileSource(location), nil
}

// FileSource reads the dataset from a local file.
type FileSource string

func (f FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	rc, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	return rc, nil
}

func (f FileSource) String() string { return string(f) }

// S3GetObjectAPI is the slice of the S3 client used by S3Source.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads the dataset from an S3 object, retrying transient
// failures with backoff.
type S3Source struct {
	Client S3GetObjectAPI
	Bucket string
	Key    string
	Retry  retry.Config
}

func (s *S3Source) Fetch(ctx context.Context) (io.ReadCloser, error) {
	var body []byte
	err := retry.Do(ctx, s.Retry, func() error {
		out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: &s.Bucket,
			Key:    &s.Key,
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s, err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Key)
}
