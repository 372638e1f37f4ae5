package store

import (
	"context"
	"testing"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

func samplePayload(hash string) *types.SnapshotPayload {
	return &types.SnapshotPayload{
		State:  types.StateEcho{ClientID: "c", Depth: types.DepthMedium, SnapshotHash: hash},
		Counts: types.Counts{NewArticles: 2},
		Highlights: []types.Highlight{
			{ID: "1", Title: "one"},
			{ID: "2", Title: "two"},
		},
		Brief:     types.Brief{Headline: "h", Summary: "s", Changed: []string{}, Unchanged: []string{}, WatchNext: []string{}},
		Citations: []string{"[A1] one"},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.StoreSnapshot(ctx, "c", "h1", types.DepthMedium, samplePayload("h1"), now); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}

	payload, hit, err := s.LookupSnapshot(ctx, "c", "h1", types.DepthMedium, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("LookupSnapshot failed: %v", err)
	}
	if !hit {
		t.Fatal("expected a cache hit")
	}
	if len(payload.Highlights) != 2 || payload.Counts.NewArticles != 2 {
		t.Errorf("payload did not round-trip: %+v", payload)
	}
}

func TestSnapshotTTLExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.StoreSnapshot(ctx, "c", "h1", types.DepthMedium, samplePayload("h1"), now.Add(-20*time.Minute)); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}

	_, hit, err := s.LookupSnapshot(ctx, "c", "h1", types.DepthMedium, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("LookupSnapshot failed: %v", err)
	}
	if hit {
		t.Error("entry older than TTL must miss")
	}
}

func TestSnapshotKeyIncludesDepth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.StoreSnapshot(ctx, "c", "h1", types.DepthShallow, samplePayload("h1"), now); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}

	_, hit, err := s.LookupSnapshot(ctx, "c", "h1", types.DepthDeep, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("LookupSnapshot failed: %v", err)
	}
	if hit {
		t.Error("a different depth is a different cache key")
	}
}

func TestSnapshotUpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.StoreSnapshot(ctx, "c", "h1", types.DepthMedium, samplePayload("h1"), now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}
	fresh := samplePayload("h1")
	fresh.Counts.NewArticles = 99
	if err := s.StoreSnapshot(ctx, "c", "h1", types.DepthMedium, fresh, now); err != nil {
		t.Fatalf("StoreSnapshot upsert failed: %v", err)
	}

	payload, hit, err := s.LookupSnapshot(ctx, "c", "h1", types.DepthMedium, 15*time.Minute, now)
	if err != nil || !hit {
		t.Fatalf("LookupSnapshot failed: hit=%v err=%v", hit, err)
	}
	if payload.Counts.NewArticles != 99 {
		t.Errorf("expected overwritten payload, got %+v", payload.Counts)
	}
}

func TestCleanupSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.StoreSnapshot(ctx, "c", "old", types.DepthMedium, samplePayload("old"), now.Add(-15*24*time.Hour)); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}
	if err := s.StoreSnapshot(ctx, "c", "new", types.DepthMedium, samplePayload("new"), now); err != nil {
		t.Fatalf("StoreSnapshot failed: %v", err)
	}

	deleted, err := s.CleanupSnapshots(ctx, 14*24*time.Hour, now)
	if err != nil {
		t.Fatalf("CleanupSnapshots failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}

	_, hit, _ := s.LookupSnapshot(ctx, "c", "new", types.DepthMedium, time.Hour, now)
	if !hit {
		t.Error("recent entry must survive cleanup")
	}
}
