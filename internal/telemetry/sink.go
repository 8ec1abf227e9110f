package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// A Sink receives encoded telemetry events, one record per Write call.
// Implementations own newline framing and must be safe for concurrent use.
type Sink interface {
	Write(line []byte) error
	Close() error
}

// SinkConfig selects and configures the event destination.
type SinkConfig struct {
	// Destination is "stdout", "stderr", an "s3://bucket/prefix" URL, or a
	// file path (appended, one JSON object per line)
	Destination string

	// S3 applies only to s3:// destinations
	S3 S3Options
}

// NewSink opens a sink for the configured destination.
func NewSink(ctx context.Context, cfg SinkConfig) (Sink, error) {
	dest := cfg.Destination
	switch {
	case dest == "" || strings.EqualFold(dest, "stdout"):
		return &writerSink{w: os.Stdout}, nil
	case strings.EqualFold(dest, "stderr"):
		return &writerSink{w: os.Stderr}, nil
	case strings.HasPrefix(dest, "s3://"):
		return newS3Sink(ctx, dest, cfg.S3)
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open telemetry file %q: %w", dest, err)
		}
		return &writerSink{w: f, closer: f}, nil
	}
}

// writerSink writes newline-delimited events to an io.Writer.
type writerSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

func (s *writerSink) Write(line []byte) error {
	// Single write so concurrent events cannot interleave
	framed := make([]byte, 0, len(line)+1)
	framed = append(framed, line...)
	framed = append(framed, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(framed)
	return err
}

func (s *writerSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
