//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	s, err := New(context.Background(), &Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("invalid config returns error", func(t *testing.T) {
		_, err := New(context.Background(), &Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		s := createTestStore(t)
		defer s.Close()

		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("expected live connection, got %v", err)
		}
	})
}

func TestScoreOperations(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()
	ctx := context.Background()

	t.Run("get missing score", func(t *testing.T) {
		_, err := s.GetScore(ctx, "nobody")
		if !errors.Is(err, ErrScoreNotFound) {
			t.Errorf("expected ErrScoreNotFound, got %v", err)
		}
	})

	t.Run("set and get score", func(t *testing.T) {
		if err := s.SetScore(ctx, "alice", 95); err != nil {
			t.Fatalf("failed to set score: %v", err)
		}

		score, err := s.GetScore(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get score: %v", err)
		}
		if score != 95 {
			t.Errorf("expected score 95, got %d", score)
		}
	})

	t.Run("set replaces existing score", func(t *testing.T) {
		if err := s.SetScore(ctx, "alice", 40); err != nil {
			t.Fatalf("failed to update score: %v", err)
		}

		score, err := s.GetScore(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get score: %v", err)
		}
		if score != 40 {
			t.Errorf("expected score 40, got %d", score)
		}
	})

	t.Run("score bounds are enforced", func(t *testing.T) {
		if err := s.SetScore(ctx, "bob", 101); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("expected ErrInvalidScore for 101, got %v", err)
		}
		if err := s.SetScore(ctx, "bob", -1); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("expected ErrInvalidScore for -1, got %v", err)
		}
		if err := s.SetScore(ctx, "bob", 0); err != nil {
			t.Errorf("expected 0 to be storable, got %v", err)
		}
		if err := s.SetScore(ctx, "bob", 100); err != nil {
			t.Errorf("expected 100 to be storable, got %v", err)
		}
	})

	t.Run("empty principal is refused", func(t *testing.T) {
		if err := s.SetScore(ctx, "", 50); !errors.Is(err, ErrInvalidPrincipal) {
			t.Errorf("expected ErrInvalidPrincipal, got %v", err)
		}
		if _, err := s.GetScore(ctx, ""); !errors.Is(err, ErrInvalidPrincipal) {
			t.Errorf("expected ErrInvalidPrincipal, got %v", err)
		}
	})

	t.Run("list scores", func(t *testing.T) {
		records, err := s.ListScores(ctx)
		if err != nil {
			t.Fatalf("failed to list scores: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].PrincipalID != "alice" || records[1].PrincipalID != "bob" {
			t.Errorf("expected alice then bob, got %s then %s",
				records[0].PrincipalID, records[1].PrincipalID)
		}
	})

	t.Run("delete score", func(t *testing.T) {
		if err := s.DeleteScore(ctx, "bob"); err != nil {
			t.Fatalf("failed to delete score: %v", err)
		}
		if _, err := s.GetScore(ctx, "bob"); !errors.Is(err, ErrScoreNotFound) {
			t.Errorf("expected ErrScoreNotFound after delete, got %v", err)
		}
	})

	t.Run("delete missing score", func(t *testing.T) {
		if err := s.DeleteScore(ctx, "bob"); !errors.Is(err, ErrScoreNotFound) {
			t.Errorf("expected ErrScoreNotFound, got %v", err)
		}
	})
}
