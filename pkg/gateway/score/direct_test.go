package score

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tollgate/pkg/store"
)

// fakeStore is an in-memory ScoreStore that counts lookups.
type fakeStore struct {
	mu     sync.Mutex
	scores map[string]int
	err    error
	calls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{scores: make(map[string]int)}
}

func (s *fakeStore) GetScore(ctx context.Context, principalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	score, ok := s.scores[principalID]
	if !ok {
		return 0, store.ErrScoreNotFound
	}
	return score, nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestDirectProviderReturnsStoredScore(t *testing.T) {
	st := newFakeStore()
	st.scores["alice"] = 87

	p := NewDirectProvider(st)

	score, err := p.GetScore(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 87, score)
}

func TestDirectProviderAbsentRecordIsZeroWithoutError(t *testing.T) {
	p := NewDirectProvider(newFakeStore())

	score, err := p.GetScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestDirectProviderPropagatesStoreFailures(t *testing.T) {
	st := newFakeStore()
	st.err = errors.New("connection refused")

	p := NewDirectProvider(st)

	score, err := p.GetScore(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, 0, score)
}

func TestDirectProviderZeroesOutOfRangeRecords(t *testing.T) {
	st := newFakeStore()
	st.scores["corrupt-high"] = 250
	st.scores["corrupt-low"] = -10

	p := NewDirectProvider(st)

	score, err := p.GetScore(context.Background(), "corrupt-high")
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	score, err = p.GetScore(context.Background(), "corrupt-low")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestDirectProviderClose(t *testing.T) {
	p := NewDirectProvider(newFakeStore())
	assert.NoError(t, p.Close())
}
