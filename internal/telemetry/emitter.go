package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/tollgate/internal/logger"
)

// EmitterConfig configures the event emitter.
type EmitterConfig struct {
	// Enabled silences all events when false
	Enabled bool

	// Version is the schema version stamped on every event (e.g., "1.0.0")
	Version string

	// BufferSize is the number of pending events held before drops (default 1024)
	BufferSize int

	// Sink receives the encoded events
	Sink Sink
}

const defaultEmitterBuffer = 1024

// Emitter serializes gateway events to JSON lines and forwards them to a
// sink from a background goroutine. Emission never blocks the caller: when
// the buffer is full, events are dropped and counted.
//
// A nil *Emitter is valid and emits nothing, so callers don't need to guard
// for the disabled case.
type Emitter struct {
	version string
	sink    Sink
	events  chan any
	done    chan struct{}
	dropped atomic.Uint64

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewEmitter creates an emitter writing to cfg.Sink. Returns nil when
// emission is disabled or no sink is configured.
func NewEmitter(cfg EmitterConfig) *Emitter {
	if !cfg.Enabled || cfg.Sink == nil {
		return nil
	}

	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = defaultEmitterBuffer
	}

	e := &Emitter{
		version: cfg.Version,
		sink:    cfg.Sink,
		events:  make(chan any, buffer),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.events {
		line, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("failed to encode telemetry event", "error", err)
			continue
		}
		if err := e.sink.Write(line); err != nil {
			logger.Warn("failed to write telemetry event", "error", err)
		}
	}
}

// EmitDecision queues a decision event. Reason and score may be nil when the
// pipeline denied before reaching the corresponding stage.
func (e *Emitter) EmitDecision(ts time.Time, requestID, verdict string, reason *string, score *int, principalHash string, latency time.Duration) {
	if e == nil {
		return
	}
	e.send(DecisionEvent{
		Version:       e.version,
		EventType:     EventDecisionMade,
		RequestID:     requestID,
		Timestamp:     ts.UTC(),
		Verdict:       verdict,
		Reason:        reason,
		Score:         score,
		PrincipalHash: principalHash,
		LatencyMs:     latency.Milliseconds(),
	})
}

// EmitError queues an error event.
func (e *Emitter) EmitError(ts time.Time, requestID, kind, message string) {
	if e == nil {
		return
	}
	e.send(ErrorEvent{
		Version:      e.version,
		EventType:    EventError,
		RequestID:    requestID,
		Timestamp:    ts.UTC(),
		ErrorKind:    kind,
		ErrorMessage: message,
	})
}

func (e *Emitter) send(ev any) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded due to congestion or
// emission after shutdown.
func (e *Emitter) Dropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

// Close stops accepting events, drains the buffer, and closes the sink.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}

	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})

	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if dropped := e.dropped.Load(); dropped > 0 {
		logger.Warn("telemetry events dropped during operation", "dropped", dropped)
	}

	return e.sink.Close()
}
