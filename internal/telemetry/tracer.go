package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for admission spans. Standard OpenTelemetry names are
// used where one exists; gateway-specific keys live under "gateway.".
//
// The principal attribute carries the SHA-256 hash of the credential
// subject, never the subject itself. Raw principal identifiers must not
// reach the trace backend.
const (
	AttrRequestID  = "request.id"
	AttrVerdict    = "gateway.verdict"
	AttrReason     = "gateway.reason"
	AttrScore      = "gateway.score"
	AttrPrincipal  = "gateway.principal_hash"
	AttrTokenID    = "gateway.jti"
	AttrAlgorithm  = "gateway.algorithm"
	AttrCacheHit   = "cache.hit"
	AttrHTTPStatus = "http.response.status_code"
	AttrBucket     = "storage.bucket"
	AttrKey        = "storage.key"
)

// Span names, one per pipeline stage or I/O boundary. Dashboards key on
// these, so renaming one is a breaking change.
const (
	SpanValidate    = "gateway.validate"
	SpanVerify      = "gateway.verify"
	SpanScoreLookup = "gateway.score_lookup"
	SpanCacheLookup = "cache.lookup"
	SpanRemoteFetch = "score.remote_fetch"
	SpanStoreGet    = "store.get"
	SpanSinkFlush   = "sink.flush"
)

// RequestID returns the request correlation attribute.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(AttrRequestID, id)
}

// Verdict returns the admission verdict attribute.
func Verdict(v string) attribute.KeyValue {
	return attribute.String(AttrVerdict, v)
}

// Reason returns the deny reason attribute.
func Reason(r string) attribute.KeyValue {
	return attribute.String(AttrReason, r)
}

// Score returns the trust score attribute.
func Score(s int) attribute.KeyValue {
	return attribute.Int(AttrScore, s)
}

// Principal returns the hashed credential subject attribute.
func Principal(hash string) attribute.KeyValue {
	return attribute.String(AttrPrincipal, hash)
}

// TokenID returns the credential jti attribute.
func TokenID(jti string) attribute.KeyValue {
	return attribute.String(AttrTokenID, jti)
}

// Algorithm returns the signature algorithm attribute.
func Algorithm(alg string) attribute.KeyValue {
	return attribute.String(AttrAlgorithm, alg)
}

// CacheHit returns the cache hit indicator attribute.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// HTTPStatus returns the upstream HTTP status attribute.
func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

// Bucket returns the object storage bucket attribute.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns the object storage key attribute.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartValidateSpan opens the root span for one admission request.
func StartValidateSpan(ctx context.Context, requestID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{RequestID(requestID)}, attrs...)
	return StartSpan(ctx, SpanValidate, trace.WithAttributes(all...))
}

// StartStageSpan opens a child span for a pipeline stage or a provider
// operation.
func StartStageSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}
