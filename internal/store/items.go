package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Item is a stored article row. The ingest pipeline writes these; the
// continuity engine only reads them.
type Item struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	Topic        string    `json:"topic"`
	PublishedAt  time.Time `json:"publishedAt"`
	Summary      string    `json:"summary"`
	Content      string    `json:"content"`
	Significance int       `json:"significance"`
	StoryType    string    `json:"storyType"`
	WatchNext    string    `json:"watchNext"`
	ThreadID     string    `json:"threadId"`
	Entities     []string  `json:"entities"`
}

// PutItem upserts an article row.
func (s *LocalStore) PutItem(ctx context.Context, item Item) error {
	entities, err := json.Marshal(item.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, title, source, topic, published_at, summary, content,
			significance, story_type, watch_next, thread_id, entities)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			topic = excluded.topic,
			published_at = excluded.published_at,
			summary = excluded.summary,
			content = excluded.content,
			significance = excluded.significance,
			story_type = excluded.story_type,
			watch_next = excluded.watch_next,
			thread_id = excluded.thread_id,
			entities = excluded.entities`,
		item.ID, item.Title, item.Source, item.Topic, item.PublishedAt.Unix(),
		item.Summary, item.Content, item.Significance, item.StoryType,
		item.WatchNext, item.ThreadID, string(entities))
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

const itemColumns = `id, title, source, topic, published_at, summary, content,
	significance, story_type, watch_next, thread_id, entities`

// FetchDelta returns candidates published after sinceAt, newest first,
// capped at limit to bound downstream cost.
func (s *LocalStore) FetchDelta(ctx context.Context, sinceAt time.Time, limit int) ([]types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE published_at > ?
		ORDER BY published_at DESC, id ASC
		LIMIT ?`, sinceAt.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch delta: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// FetchLookback returns candidates published after from, for the
// unchanged-context builder's longer window.
func (s *LocalStore) FetchLookback(ctx context.Context, from time.Time, limit int) ([]types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE published_at > ?
		ORDER BY significance DESC, published_at DESC
		LIMIT ?`, from.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lookback: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]types.Candidate, error) {
	var out []types.Candidate
	for rows.Next() {
		var (
			c           types.Candidate
			published   int64
			content     string
			rawEntities string
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Source, &c.Topic, &published,
			&c.SummaryText, &content, &c.Significance, &c.StoryType,
			&c.WatchNext, &c.ThreadID, &rawEntities); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		c.PublishedAt = time.Unix(published, 0).UTC()
		if err := json.Unmarshal([]byte(rawEntities), &c.Entities); err != nil {
			c.Entities = nil
		}

		// Absent intelligence fields default safely.
		c.Significance = types.ClampSignificance(c.Significance)
		if c.StoryType == "" {
			c.StoryType = types.StoryTypeUpdate
		}
		c.SearchText = strings.ToLower(strings.Join(append(
			[]string{c.Title, c.Source, content}, c.Entities...), " "))

		out = append(out, c)
	}
	return out, rows.Err()
}

// AddReaction records a user reaction on an item.
func (s *LocalStore) AddReaction(ctx context.Context, itemID string, reaction types.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO item_reactions (item_id, reaction, created_at) VALUES (?, ?, ?)`,
		itemID, string(reaction), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

// FetchReactions returns the reactions recorded for each of the given item
// ids. Items with no reactions are absent from the map.
func (s *LocalStore) FetchReactions(ctx context.Context, ids []string) (map[string][]types.Reaction, error) {
	if len(ids) == 0 {
		return map[string][]types.Reaction{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, reaction FROM item_reactions WHERE item_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reactions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]types.Reaction)
	for rows.Next() {
		var itemID, reaction string
		if err := rows.Scan(&itemID, &reaction); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		out[itemID] = append(out[itemID], types.Reaction(reaction))
	}
	return out, rows.Err()
}

// BumpTopicEngagement increments the interaction count for a topic.
func (s *LocalStore) BumpTopicEngagement(ctx context.Context, topic string, by int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO topic_engagement (topic, interactions, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			interactions = interactions + excluded.interactions,
			updated_at = excluded.updated_at`,
		topic, by, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to bump engagement: %w", err)
	}
	return nil
}

// TopicEngagement returns the aggregate interaction count per topic.
func (s *LocalStore) TopicEngagement(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT topic, interactions FROM topic_engagement`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch engagement: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var topic string
		var n int
		if err := rows.Scan(&topic, &n); err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		out[topic] = n
	}
	return out, rows.Err()
}
