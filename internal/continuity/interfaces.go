package continuity

import (
	"context"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/brief"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// ItemSource supplies candidate items and their reactions. Consumed at the
// interface boundary; the engine does not own ingestion.
type ItemSource interface {
	FetchDelta(ctx context.Context, sinceAt time.Time, limit int) ([]types.Candidate, error)
	FetchLookback(ctx context.Context, from time.Time, limit int) ([]types.Candidate, error)
	FetchReactions(ctx context.Context, ids []string) (map[string][]types.Reaction, error)
}

// WatchlistSource supplies the user's tracked terms.
type WatchlistSource interface {
	Terms(ctx context.Context) ([]string, error)
}

// EngagementSource supplies aggregate interaction counts per topic.
type EngagementSource interface {
	TopicEngagement(ctx context.Context) (map[string]int, error)
}

// StateStore owns the per-client continuity rows.
type StateStore interface {
	ResolveState(ctx context.Context, clientID string) (types.ContinuityState, error)
	Acknowledge(ctx context.Context, clientID string, depth types.Depth, untilAt, now time.Time) (types.ContinuityState, error)
	RecordSnapshotHash(ctx context.Context, clientID, hash string) error
}

// SnapshotStore is the content-addressed snapshot cache.
type SnapshotStore interface {
	LookupSnapshot(ctx context.Context, clientID, hash string, depth types.Depth, ttl time.Duration, now time.Time) (*types.SnapshotPayload, bool, error)
	StoreSnapshot(ctx context.Context, clientID, hash string, depth types.Depth, payload *types.SnapshotPayload, now time.Time) error
	CleanupSnapshots(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// BriefGenerator produces the narrative brief for a computed result.
type BriefGenerator interface {
	Generate(ctx context.Context, in brief.Input) types.Brief
}
