//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/checkpoint"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestIntegration_CheckpointRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path := "/tmp/integration-" + uuid.New().String()[:8] + ".jsonl"
	t.Cleanup(func() { _ = s.Delete(ctx, path) })

	cp, err := s.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected no checkpoint, got %+v", cp)
	}

	watchID := uuid.New().String()
	if err := s.Save(ctx, checkpoint.Checkpoint{Path: path, WatchID: watchID, SessionID: "s1", Offset: 512}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cp, err = s.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp == nil {
		t.Fatal("expected checkpoint")
	}
	if cp.Offset != 512 {
		t.Errorf("Offset = %d, want 512", cp.Offset)
	}
	if cp.WatchID != watchID {
		t.Errorf("WatchID = %q, want %q", cp.WatchID, watchID)
	}
	if cp.SessionID != "s1" {
		t.Errorf("SessionID = %q", cp.SessionID)
	}
}

func TestIntegration_OffsetNeverMovesBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path := "/tmp/integration-" + uuid.New().String()[:8] + ".jsonl"
	t.Cleanup(func() { _ = s.Delete(ctx, path) })

	if err := s.Save(ctx, checkpoint.Checkpoint{Path: path, SessionID: "s1", Offset: 900}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, checkpoint.Checkpoint{Path: path, Offset: 100}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cp, err := s.Load(ctx, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp.Offset != 900 {
		t.Errorf("Offset = %d, want 900", cp.Offset)
	}
	if cp.SessionID != "s1" {
		t.Errorf("empty session id overwrote stored one: %q", cp.SessionID)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	found := false
	for _, c := range all {
		if c.Path == path {
			found = true
		}
	}
	if !found {
		t.Error("saved checkpoint missing from List")
	}
}
