package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// LookupSnapshot returns the cached payload for (clientID, hash, depth) if
// one was generated within the TTL window. The second return is false on
// miss or expiry.
func (s *LocalStore) LookupSnapshot(ctx context.Context, clientID, hash string, depth types.Depth, ttl time.Duration, now time.Time) (*types.SnapshotPayload, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM snapshot_cache
		WHERE client_id = ? AND snapshot_hash = ? AND depth = ? AND generated_at >= ?`,
		clientID, hash, string(depth), now.Add(-ttl).Unix()).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to lookup snapshot: %w", err)
	}

	var payload types.SnapshotPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// A row we cannot decode is as good as a miss.
		return nil, false, nil
	}
	return &payload, true, nil
}

// StoreSnapshot upserts the payload keyed by (clientID, hash, depth),
// overwriting any older entry for the same key. Writes are idempotent: two
// concurrent requests with equivalent inputs produce equivalent rows.
func (s *LocalStore) StoreSnapshot(ctx context.Context, clientID, hash string, depth types.Depth, payload *types.SnapshotPayload, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshot_cache (client_id, snapshot_hash, depth, payload, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_id, snapshot_hash, depth) DO UPDATE SET
			payload = excluded.payload,
			generated_at = excluded.generated_at`,
		clientID, hash, string(depth), string(raw), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// CleanupSnapshots deletes cache entries older than the retention window.
// Invoked opportunistically on a fraction of requests, not on a schedule.
func (s *LocalStore) CleanupSnapshots(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshot_cache WHERE generated_at < ?`,
		now.Add(-retention).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
