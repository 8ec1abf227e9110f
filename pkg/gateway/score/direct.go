package score

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/tollgate/internal/telemetry"
	"github.com/marmos91/tollgate/pkg/store"
)

// DirectProvider reads trust scores straight from the record store.
type DirectProvider struct {
	store ScoreStore
}

// NewDirectProvider creates a provider backed by the given record store.
func NewDirectProvider(st ScoreStore) *DirectProvider {
	return &DirectProvider{store: st}
}

// GetScore returns the stored score for the principal. An absent record
// resolves to (0, nil); any other store failure is returned with score 0.
func (p *DirectProvider) GetScore(ctx context.Context, principalID string) (int, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanStoreGet)
	defer span.End()

	value, err := p.store.GetScore(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrScoreNotFound) {
			return 0, nil
		}
		telemetry.RecordError(ctx, err)
		return 0, fmt.Errorf("read trust score: %w", err)
	}
	return normalize(value), nil
}

// Close is a no-op: the record store's lifecycle belongs to its owner.
func (p *DirectProvider) Close() error {
	return nil
}
