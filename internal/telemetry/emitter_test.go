package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectSink records every line it receives.
type collectSink struct {
	mu     sync.Mutex
	lines  [][]byte
	closed bool
}

func (s *collectSink) Write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(line))
	copy(cp, line)
	s.lines = append(s.lines, cp)
	return nil
}

func (s *collectSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *collectSink) Lines() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.lines...)
}

// blockingSink blocks every Write until the gate is closed.
type blockingSink struct {
	gate chan struct{}
	collectSink
}

func (s *blockingSink) Write(line []byte) error {
	<-s.gate
	return s.collectSink.Write(line)
}

func TestNewEmitterDisabled(t *testing.T) {
	assert.Nil(t, NewEmitter(EmitterConfig{Enabled: false, Sink: &collectSink{}}))
	assert.Nil(t, NewEmitter(EmitterConfig{Enabled: true, Sink: nil}))
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter

	require.NotPanics(t, func() {
		e.EmitDecision(time.Now(), "req-1", "ALLOW", nil, nil, "hash", time.Millisecond)
		e.EmitError(time.Now(), "req-1", "internal_error", "boom")
	})
	assert.Zero(t, e.Dropped())
	assert.NoError(t, e.Close(context.Background()))
}

func TestEmitterWritesDecisionEvents(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 95
	e.EmitDecision(ts, "req-1", "ALLOW", nil, &score, "abc123", 4200*time.Microsecond)

	require.NoError(t, e.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 1)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ev))

	assert.Equal(t, "1.0.0", ev["version"])
	assert.Equal(t, EventDecisionMade, ev["event_type"])
	assert.Equal(t, "req-1", ev["request_id"])
	assert.Equal(t, "ALLOW", ev["verdict"])
	assert.Equal(t, float64(95), ev["score"])
	assert.Equal(t, "abc123", ev["principal_hash"])
	assert.Equal(t, float64(4), ev["latency_ms"])
	assert.NotContains(t, ev, "reason")
	assert.True(t, sink.closed)
}

func TestEmitterWritesDenyWithReason(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	reason := "RATE_LIMIT_EXCEEDED"
	e.EmitDecision(time.Now(), "req-2", "DENY", &reason, nil, "", time.Millisecond)

	require.NoError(t, e.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 1)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ev))

	assert.Equal(t, "DENY", ev["verdict"])
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", ev["reason"])
	assert.NotContains(t, ev, "score")
}

func TestEmitterWritesErrorEvents(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	e.EmitError(time.Now(), "req-3", "verification_failure", "key rotated")

	require.NoError(t, e.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 1)

	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ev))

	assert.Equal(t, EventError, ev["event_type"])
	assert.Equal(t, "verification_failure", ev["error_kind"])
	assert.Equal(t, "key rotated", ev["error_message"])
	assert.Equal(t, "req-3", ev["request_id"])
}

func TestEmitterTimestampsAreUTC(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	e.EmitError(local, "req-4", "internal_error", "boom")

	require.NoError(t, e.Close(context.Background()))

	lines := sink.Lines()
	require.Len(t, lines, 1)

	var ev ErrorEvent
	require.NoError(t, json.Unmarshal(lines[0], &ev))
	assert.Equal(t, time.UTC, ev.Timestamp.Location())
	assert.Equal(t, 11, ev.Timestamp.Hour())
}

func TestEmitterDropsWhenCongested(t *testing.T) {
	sink := &blockingSink{gate: make(chan struct{})}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", BufferSize: 1, Sink: sink})
	require.NotNil(t, e)

	// With the sink blocked and a single-slot buffer, at least one of these
	// cannot be queued
	for i := 0; i < 5; i++ {
		e.EmitError(time.Now(), "req", "internal_error", "boom")
	}

	assert.GreaterOrEqual(t, e.Dropped(), uint64(1))

	close(sink.gate)
	require.NoError(t, e.Close(context.Background()))

	delivered := uint64(len(sink.Lines()))
	assert.Equal(t, uint64(5), delivered+e.Dropped())
}

func TestEmitAfterCloseDoesNotPanic(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	require.NoError(t, e.Close(context.Background()))

	require.NotPanics(t, func() {
		e.EmitError(time.Now(), "req", "internal_error", "after close")
	})
	assert.Equal(t, uint64(1), e.Dropped())
}

func TestEmitterCloseIsIdempotent(t *testing.T) {
	sink := &collectSink{}
	e := NewEmitter(EmitterConfig{Enabled: true, Version: "1.0.0", Sink: sink})
	require.NotNil(t, e)

	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))
}

// ============================================================================
// Sink Tests
// ============================================================================

func TestWriterSinkFraming(t *testing.T) {
	var sb strings.Builder
	s := &writerSink{w: &sb}

	require.NoError(t, s.Write([]byte(`{"a":1}`)))
	require.NoError(t, s.Write([]byte(`{"b":2}`)))
	require.NoError(t, s.Close())

	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", sb.String())
}

func TestNewSinkStdout(t *testing.T) {
	s, err := NewSink(context.Background(), SinkConfig{Destination: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, s)

	s2, err := NewSink(context.Background(), SinkConfig{Destination: ""})
	require.NoError(t, err)
	require.NotNil(t, s2)
}

func TestNewSinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	s, err := NewSink(context.Background(), SinkConfig{Destination: path})
	require.NoError(t, err)

	require.NoError(t, s.Write([]byte(`{"event":"one"}`)))
	require.NoError(t, s.Write([]byte(`{"event":"two"}`)))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, json.Valid([]byte(lines[0])))
	assert.True(t, json.Valid([]byte(lines[1])))
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		name       string
		dest       string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{name: "BucketOnly", dest: "s3://events", wantBucket: "events", wantPrefix: ""},
		{name: "BucketAndPrefix", dest: "s3://events/gateway", wantBucket: "events", wantPrefix: "gateway/"},
		{name: "TrailingSlash", dest: "s3://events/gateway/", wantBucket: "events", wantPrefix: "gateway/"},
		{name: "DeepPrefix", dest: "s3://events/a/b/c", wantBucket: "events", wantPrefix: "a/b/c/"},
		{name: "MissingBucket", dest: "s3:///prefix", wantErr: true},
		{name: "NotS3", dest: "events", wantErr: true},
		{name: "Empty", dest: "s3://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := parseS3URL(tt.dest)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}
