package store

import (
	"context"
	"testing"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveStateCreatesDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.ResolveState(ctx, "client-1")
	if err != nil {
		t.Fatalf("ResolveState failed: %v", err)
	}
	if state.ClientID != "client-1" {
		t.Errorf("expected client-1, got %q", state.ClientID)
	}
	if state.LastSeenAt != nil {
		t.Error("fresh client must have a null watermark")
	}
	if state.PreferredDepth != types.DefaultDepth {
		t.Errorf("expected default depth, got %q", state.PreferredDepth)
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	until := now.Add(-time.Hour)

	first, err := s.Acknowledge(ctx, "c", types.DepthDeep, until, now)
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	second, err := s.Acknowledge(ctx, "c", types.DepthDeep, until, now)
	if err != nil {
		t.Fatalf("second Acknowledge failed: %v", err)
	}

	if first.LastSeenAt == nil || second.LastSeenAt == nil {
		t.Fatal("watermark not set")
	}
	if !first.LastSeenAt.Equal(*second.LastSeenAt) {
		t.Errorf("repeat acknowledge changed the watermark: %v vs %v", first.LastSeenAt, second.LastSeenAt)
	}
	if second.PreferredDepth != types.DepthDeep {
		t.Errorf("expected deep, got %q", second.PreferredDepth)
	}
}

func TestAcknowledgeClampsFutureWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	state, err := s.Acknowledge(ctx, "c", types.DepthMedium, now.Add(48*time.Hour), now)
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if state.LastSeenAt == nil {
		t.Fatal("watermark not set")
	}
	if state.LastSeenAt.After(now) {
		t.Errorf("watermark %v exceeds now %v", state.LastSeenAt, now)
	}
	if !state.LastSeenAt.Equal(now) {
		t.Errorf("future watermark should clamp to now, got %v", state.LastSeenAt)
	}
}

func TestAcknowledgeInvalidDepthFallsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	state, err := s.Acknowledge(ctx, "c", types.Depth("bogus"), now, now)
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if state.PreferredDepth != types.DefaultDepth {
		t.Errorf("invalid depth should normalize to default, got %q", state.PreferredDepth)
	}
}

func TestRecordSnapshotHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.ResolveState(ctx, "c"); err != nil {
		t.Fatalf("ResolveState failed: %v", err)
	}
	if err := s.RecordSnapshotHash(ctx, "c", "abc123"); err != nil {
		t.Fatalf("RecordSnapshotHash failed: %v", err)
	}

	state, err := s.ResolveState(ctx, "c")
	if err != nil {
		t.Fatalf("ResolveState failed: %v", err)
	}
	if state.LastSnapshotHash != "abc123" {
		t.Errorf("expected abc123, got %q", state.LastSnapshotHash)
	}
	if state.LastSeenAt != nil {
		t.Error("recording a snapshot hash must not advance the watermark")
	}
}
