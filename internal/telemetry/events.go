package telemetry

import "time"

// Event types carried in the event_type envelope field.
const (
	EventDecisionMade = "gateway.decision.made"
	EventError        = "gateway.error"
)

// DecisionEvent records the outcome of a single validation. Reason and Score
// are omitted when the pipeline never reached the corresponding stage.
type DecisionEvent struct {
	Version       string    `json:"version"`
	EventType     string    `json:"event_type"`
	RequestID     string    `json:"request_id"`
	Timestamp     time.Time `json:"timestamp"`
	Verdict       string    `json:"verdict"`
	Reason        *string   `json:"reason,omitempty"`
	Score         *int      `json:"score,omitempty"`
	PrincipalHash string    `json:"principal_hash"`
	LatencyMs     int64     `json:"latency_ms"`
}

// ErrorEvent records an internal failure during validation.
type ErrorEvent struct {
	Version      string    `json:"version"`
	EventType    string    `json:"event_type"`
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorKind    string    `json:"error_kind"`
	ErrorMessage string    `json:"error_message"`
}
