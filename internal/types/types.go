// Package types holds the shared data model for the continuity engine:
// candidates coming out of the item store, ranked candidates and their
// display projections, the per-client continuity state, and the snapshot
// payload returned to callers.
package types

import (
	"strings"
	"time"
)

// Depth is the level of detail (and cost) requested for a continuity report.
type Depth string

const (
	DepthShallow Depth = "shallow"
	DepthMedium  Depth = "medium"
	DepthDeep    Depth = "deep"
)

// DefaultDepth is used when neither the request nor the stored client
// preference carries a valid depth.
const DefaultDepth = DepthMedium

// ParseDepth normalizes a caller-supplied depth string. The second return
// is false when the input is not one of the three known depths.
func ParseDepth(s string) (Depth, bool) {
	switch Depth(strings.ToLower(strings.TrimSpace(s))) {
	case DepthShallow:
		return DepthShallow, true
	case DepthMedium:
		return DepthMedium, true
	case DepthDeep:
		return DepthDeep, true
	}
	return "", false
}

// DepthConfig fixes the limits applied at each depth. Configs are static and
// total-ordered: every field at deep >= medium >= shallow.
type DepthConfig struct {
	HighlightLimit     int
	CitationLimit      int
	MaxTokens          int
	MaxSourceArticles  int
	ChangedBulletLimit int
	WatchNextLimit     int
}

var depthConfigs = map[Depth]DepthConfig{
	DepthShallow: {
		HighlightLimit:     5,
		CitationLimit:      3,
		MaxTokens:          400,
		MaxSourceArticles:  6,
		ChangedBulletLimit: 3,
		WatchNextLimit:     2,
	},
	DepthMedium: {
		HighlightLimit:     8,
		CitationLimit:      5,
		MaxTokens:          800,
		MaxSourceArticles:  10,
		ChangedBulletLimit: 5,
		WatchNextLimit:     3,
	},
	DepthDeep: {
		HighlightLimit:     12,
		CitationLimit:      8,
		MaxTokens:          1500,
		MaxSourceArticles:  14,
		ChangedBulletLimit: 7,
		WatchNextLimit:     5,
	},
}

// ConfigForDepth returns the limits for the given depth, falling back to the
// default depth's config for unknown values.
func ConfigForDepth(d Depth) DepthConfig {
	if cfg, ok := depthConfigs[d]; ok {
		return cfg
	}
	return depthConfigs[DefaultDepth]
}

// Reaction is a user feedback signal attached to an item.
type Reaction string

const (
	ReactionUseful       Reaction = "useful"
	ReactionSurprising   Reaction = "surprising"
	ReactionAlreadyKnew  Reaction = "already_knew"
	ReactionBadLink      Reaction = "bad_connection"
	ReactionNotImportant Reaction = "not_important"
)

// StoryTypeUpdate is the neutral default when the item store supplies no
// story type.
const StoryTypeUpdate = "update"

// Candidate is a raw item inside the delta window, eligible for inclusion in
// a continuity report.
type Candidate struct {
	ID          string
	Title       string
	Source      string
	Topic       string
	PublishedAt time.Time

	// SummaryText is a precomputed per-item summary, may be empty.
	SummaryText string
	// SearchText is the lower-cased concatenation of title, source, content
	// and entities, used for watchlist substring matching.
	SearchText string

	// Significance is clamped to 1..10; absent values default mid-scale.
	Significance int
	StoryType    string
	WatchNext    string
	Entities     []string
	Reactions    []Reaction

	// ThreadID is the explicit thread identifier when the item store has one.
	// Grouping falls back to a normalized-title key when it is empty.
	ThreadID string
}

// RankedCandidate is a Candidate plus its relevance score, watchlist matches
// and a one-line human-readable reason.
type RankedCandidate struct {
	Candidate

	WatchlistMatches []string
	Reason           string
	Score            float64
}

// Highlight is the externally visible, truncated projection of a ranked
// candidate.
type Highlight struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Source           string    `json:"source"`
	Topic            string    `json:"topic,omitempty"`
	PublishedAt      time.Time `json:"publishedAt"`
	Significance     int       `json:"significance"`
	WatchlistMatches []string  `json:"watchlistMatches,omitempty"`
	Reason           string    `json:"reason"`
	WatchNext        string    `json:"watchNext,omitempty"`
}

// HighlightOf projects a ranked candidate into its display form.
func HighlightOf(rc RankedCandidate) Highlight {
	return Highlight{
		ID:               rc.ID,
		Title:            rc.Title,
		Source:           rc.Source,
		Topic:            rc.Topic,
		PublishedAt:      rc.PublishedAt,
		Significance:     rc.Significance,
		WatchlistMatches: rc.WatchlistMatches,
		Reason:           rc.Reason,
		WatchNext:        rc.WatchNext,
	}
}

// UnchangedThread is a still-live story with no fresh update in the current
// delta window, surfaced as continuity context.
type UnchangedThread struct {
	Title        string    `json:"title"`
	Topic        string    `json:"topic,omitempty"`
	Significance int       `json:"significance"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// Brief is the short structured narrative shown at the top of a report.
// All fields are always populated; the deterministic fallback guarantees
// structural completeness when generation is unavailable.
type Brief struct {
	Headline  string   `json:"headline"`
	Summary   string   `json:"summary"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
	WatchNext []string `json:"watchNext"`
}

// StateEcho is the request-scoped view of client state returned inside a
// snapshot payload.
type StateEcho struct {
	ClientID     string     `json:"clientId"`
	Depth        Depth      `json:"depth"`
	LastSeenAt   *time.Time `json:"lastSeenAt"`
	SinceAt      time.Time  `json:"sinceAt"`
	UntilAt      time.Time  `json:"untilAt"`
	IsFirstVisit bool       `json:"isFirstVisit"`
	Cached       bool       `json:"cached"`
	SnapshotHash string     `json:"snapshotHash"`
}

// Counts summarizes the delta window.
type Counts struct {
	NewArticles   int `json:"newArticles"`
	NewThreads    int `json:"newThreads"`
	WatchlistHits int `json:"watchlistHits"`
}

// SnapshotPayload is the full computed result for one request.
type SnapshotPayload struct {
	State      StateEcho   `json:"state"`
	Counts     Counts      `json:"counts"`
	Highlights []Highlight `json:"highlights"`
	Brief      Brief       `json:"brief"`
	Citations  []string    `json:"citations"`
}

// ContinuityState is the durable per-client row: the last-seen watermark,
// the preferred depth, and the hash of the last snapshot actually shown.
type ContinuityState struct {
	ClientID         string     `json:"clientId"`
	LastSeenAt       *time.Time `json:"lastSeenAt"`
	PreferredDepth   Depth      `json:"preferredDepth"`
	LastSnapshotHash string     `json:"lastSnapshotHash,omitempty"`
}

// ClampSignificance bounds a raw significance score to 1..10, defaulting
// mid-scale when the item store supplied nothing.
func ClampSignificance(v int) int {
	if v == 0 {
		return 5
	}
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
