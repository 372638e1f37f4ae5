package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// ResolveState returns the client's continuity state, creating a default row
// on first contact (null watermark, default depth).
func (s *LocalStore) ResolveState(ctx context.Context, clientID string) (types.ContinuityState, error) {
	s.mu.RLock()
	state, err := s.readState(ctx, clientID)
	s.mu.RUnlock()
	if err == nil {
		return state, nil
	}
	if err != sql.ErrNoRows {
		return types.ContinuityState{}, fmt.Errorf("failed to read state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO continuity_state (client_id, last_seen_at, preferred_depth, last_snapshot_hash, updated_at)
		VALUES (?, NULL, ?, '', ?)
		ON CONFLICT(client_id) DO NOTHING`,
		clientID, string(types.DefaultDepth), time.Now().Unix())
	if err != nil {
		return types.ContinuityState{}, fmt.Errorf("failed to create state: %w", err)
	}
	return s.readState(ctx, clientID)
}

func (s *LocalStore) readState(ctx context.Context, clientID string) (types.ContinuityState, error) {
	var (
		state      types.ContinuityState
		lastSeen   sql.NullInt64
		depth      string
		lastHash   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, last_seen_at, preferred_depth, last_snapshot_hash
		FROM continuity_state WHERE client_id = ?`, clientID).
		Scan(&state.ClientID, &lastSeen, &depth, &lastHash)
	if err != nil {
		return types.ContinuityState{}, err
	}

	if lastSeen.Valid {
		t := time.Unix(lastSeen.Int64, 0).UTC()
		state.LastSeenAt = &t
	}
	if d, ok := types.ParseDepth(depth); ok {
		state.PreferredDepth = d
	} else {
		state.PreferredDepth = types.DefaultDepth
	}
	state.LastSnapshotHash = lastHash
	return state, nil
}

// Acknowledge advances the client's watermark to min(untilAt, now) and
// records the preferred depth. Last write wins; the clamp stops a client
// from claiming a future watermark.
func (s *LocalStore) Acknowledge(ctx context.Context, clientID string, depth types.Depth, untilAt, now time.Time) (types.ContinuityState, error) {
	watermark := untilAt
	if watermark.After(now) {
		watermark = now
	}
	if _, ok := types.ParseDepth(string(depth)); !ok {
		depth = types.DefaultDepth
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO continuity_state (client_id, last_seen_at, preferred_depth, last_snapshot_hash, updated_at)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(client_id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			preferred_depth = excluded.preferred_depth,
			updated_at = excluded.updated_at`,
		clientID, watermark.Unix(), string(depth), now.Unix())
	if err != nil {
		return types.ContinuityState{}, fmt.Errorf("failed to acknowledge: %w", err)
	}
	return s.readState(ctx, clientID)
}

// RecordSnapshotHash stores the hash of the snapshot last shown to the
// client. Best-effort bookkeeping; the watermark is untouched.
func (s *LocalStore) RecordSnapshotHash(ctx context.Context, clientID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		UPDATE continuity_state SET last_snapshot_hash = ?, updated_at = ?
		WHERE client_id = ?`,
		hash, time.Now().Unix(), clientID)
	if err != nil {
		return fmt.Errorf("failed to record snapshot hash: %w", err)
	}
	return nil
}
