package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/tollgate/internal/logger"
)

// S3Options configures the S3 telemetry sink.
type S3Options struct {
	// Region is the AWS region; empty falls back to the default config chain
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible storage (MinIO, etc.)
	Endpoint string

	// AccessKeyID and SecretAccessKey set static credentials; empty falls
	// back to the default credential chain
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle uses path-style addressing (required by most
	// S3-compatible servers)
	ForcePathStyle bool

	// FlushInterval is how often buffered events are shipped (default 10s)
	FlushInterval time.Duration

	// MaxBatch triggers an immediate flush when this many events are
	// buffered (default 1000)
	MaxBatch int
}

// s3Sink batches events and ships them as JSONL objects under
// <prefix>/YYYY/MM/DD/events-HHMMSS-<id>.jsonl.
type s3Sink struct {
	client *s3.Client
	bucket string
	prefix string

	mu    sync.Mutex
	buf   bytes.Buffer
	count int

	flushInterval time.Duration
	maxBatch      int

	flushCh   chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

func newS3Sink(ctx context.Context, dest string, opts S3Options) (*s3Sink, error) {
	bucket, prefix, err := parseS3URL(dest)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = &opts.Endpoint
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access telemetry bucket %q: %w", bucket, err)
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 1000
	}

	s := &s3Sink{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		flushInterval: flushInterval,
		maxBatch:      maxBatch,
		flushCh:       make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go s.flushWorker()
	return s, nil
}

// parseS3URL splits "s3://bucket/prefix" into bucket and normalized prefix.
func parseS3URL(dest string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(dest, "s3://")
	if trimmed == "" || trimmed == dest {
		return "", "", fmt.Errorf("invalid s3 destination %q", dest)
	}

	bucket, prefix, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid s3 destination %q: missing bucket", dest)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

func (s *s3Sink) Write(line []byte) error {
	s.mu.Lock()
	s.buf.Write(line)
	s.buf.WriteByte('\n')
	s.count++
	full := s.count >= s.maxBatch
	s.mu.Unlock()

	if full {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *s3Sink) flushWorker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushCh:
			s.flush()
		case <-s.stopCh:
			s.flush()
			return
		}
	}
}

func (s *s3Sink) flush() {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		return
	}
	payload := make([]byte, s.buf.Len())
	copy(payload, s.buf.Bytes())
	count := s.count
	s.buf.Reset()
	s.count = 0
	s.mu.Unlock()

	key := s.objectKey(time.Now().UTC())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ctx, span := StartSpan(ctx, SpanSinkFlush,
		trace.WithAttributes(Bucket(s.bucket), StorageKey(key)))
	defer span.End()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	}); err != nil {
		RecordError(ctx, err)
		logger.Warn("failed to ship telemetry batch",
			"bucket", s.bucket, "key", key, "events", count, "error", err)
	}
}

func (s *s3Sink) objectKey(ts time.Time) string {
	return fmt.Sprintf("%s%s/events-%s-%s.jsonl",
		s.prefix, ts.Format("2006/01/02"), ts.Format("150405"), uuid.NewString()[:8])
}

func (s *s3Sink) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}
