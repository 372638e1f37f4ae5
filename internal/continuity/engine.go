// Package continuity is the core of the digest: it answers "what changed
// since I last looked, and what of it matters to me?". One Engine serves all
// clients; each call is a short-lived, stateless computation.
package continuity

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vidurdewan/the-digest-sub001/internal/brief"
	"github.com/vidurdewan/the-digest-sub001/internal/ranking"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Options are the engine tunables.
type Options struct {
	CacheTTL         time.Duration
	Retention        time.Duration
	SweepProbability float64
	DeltaCap         int
	LookbackCap      int
	LookbackWindow   time.Duration
	FirstVisitWindow time.Duration
	Weights          ranking.Weights
}

// DefaultOptions returns the stock tunables.
func DefaultOptions() Options {
	return Options{
		CacheTTL:         15 * time.Minute,
		Retention:        14 * 24 * time.Hour,
		SweepProbability: 0.02,
		DeltaCap:         200,
		LookbackCap:      500,
		LookbackWindow:   96 * time.Hour,
		FirstVisitWindow: 24 * time.Hour,
		Weights:          ranking.DefaultWeights(),
	}
}

// Engine orchestrates one continuity computation per call. All collaborators
// are injected; there are no hidden singletons.
type Engine struct {
	items      ItemSource
	watchlist  WatchlistSource
	engagement EngagementSource
	states     StateStore
	snapshots  SnapshotStore
	briefs     BriefGenerator

	opts Options
	log  *zap.Logger

	now    func() time.Time
	chance func() float64

	sideEffects taskGroup
}

// New wires an Engine.
func New(items ItemSource, watchlist WatchlistSource, engagement EngagementSource,
	states StateStore, snapshots SnapshotStore, briefs BriefGenerator,
	opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		items:      items,
		watchlist:  watchlist,
		engagement: engagement,
		states:     states,
		snapshots:  snapshots,
		briefs:     briefs,
		opts:       opts,
		log:        log,
		now:        time.Now,
		chance:     rand.Float64,
	}
}

// Flush blocks until in-flight fire-and-forget side effects complete.
// Responses never wait on these; Flush exists for shutdown and tests.
func (e *Engine) Flush() { e.sideEffects.Wait() }

const anonymousClient = "anonymous"

// NormalizeClientID strips a caller-supplied id to a safe character set and
// caps its length. Empty input maps to the anonymous sentinel.
func NormalizeClientID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
		if b.Len() == 64 {
			break
		}
	}
	if b.Len() == 0 {
		return anonymousClient
	}
	return b.String()
}

// resolveDepth picks the effective depth: explicit override, then the
// client's stored preference, then the global default.
func resolveDepth(override string, state types.ContinuityState) types.Depth {
	if d, ok := types.ParseDepth(override); ok {
		return d
	}
	if d, ok := types.ParseDepth(string(state.PreferredDepth)); ok {
		return d
	}
	return types.DefaultDepth
}

// Snapshot computes the continuity report for one client. Collaborator
// failures degrade to safe defaults; only a candidate-store failure
// propagates, since without candidates there is nothing to report on.
func (e *Engine) Snapshot(ctx context.Context, rawClientID, depthOverride string) (*types.SnapshotPayload, error) {
	clientID := NormalizeClientID(rawClientID)
	now := e.now()

	state, err := e.states.ResolveState(ctx, clientID)
	if err != nil {
		// Degrade to a fresh in-memory state; the next request recomputes
		// from the same watermark.
		e.log.Warn("state resolution failed, using defaults",
			zap.String("client", clientID), zap.Error(err))
		state = types.ContinuityState{ClientID: clientID, PreferredDepth: types.DefaultDepth}
	}

	depth := resolveDepth(depthOverride, state)
	cfg := types.ConfigForDepth(depth)

	isFirstVisit := state.LastSeenAt == nil
	sinceAt := now.Add(-e.opts.FirstVisitWindow)
	if state.LastSeenAt != nil {
		sinceAt = *state.LastSeenAt
	}

	// Fan out the three independent reads. Watchlist and engagement are
	// optional enrichments; the candidate fetch is load-bearing.
	var (
		candidates []types.Candidate
		terms      []string
		engagement map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = e.items.FetchDelta(gctx, sinceAt, e.opts.DeltaCap)
		if err != nil {
			return fmt.Errorf("failed to fetch candidates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		t, err := e.watchlist.Terms(gctx)
		if err != nil {
			e.log.Warn("watchlist load failed, continuing without", zap.Error(err))
			return nil
		}
		terms = t
		return nil
	})
	g.Go(func() error {
		m, err := e.engagement.TopicEngagement(gctx)
		if err != nil {
			e.log.Warn("engagement load failed, continuing without", zap.Error(err))
			return nil
		}
		engagement = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Dependent fan-out: reactions for the fetched ids.
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	if len(ids) > 0 {
		reactions, err := e.items.FetchReactions(ctx, ids)
		if err != nil {
			e.log.Warn("reaction load failed, continuing without", zap.Error(err))
		} else {
			for i := range candidates {
				candidates[i].Reactions = reactions[candidates[i].ID]
			}
		}
	}

	ranked := ranking.Rank(candidates, terms, engagement, e.opts.Weights, now)
	hash := Hash(clientID, depth, sinceAt, ids)

	echo := types.StateEcho{
		ClientID:     clientID,
		Depth:        depth,
		LastSeenAt:   state.LastSeenAt,
		SinceAt:      sinceAt,
		UntilAt:      now,
		IsFirstVisit: isFirstVisit,
		SnapshotHash: hash,
	}

	if payload, ok := e.lookupCached(ctx, clientID, depth, sinceAt, ids, hash, now); ok {
		payload.State = echo
		payload.State.Cached = true
		truncateToDepth(payload, cfg)
		return payload, nil
	}

	// Cache miss: build the full result.
	lookback, err := e.items.FetchLookback(ctx, now.Add(-e.opts.LookbackWindow), e.opts.LookbackCap)
	if err != nil {
		e.log.Warn("lookback fetch failed, skipping unchanged context", zap.Error(err))
		lookback = nil
	}
	unchanged := ranking.BuildUnchanged(lookback, ranking.DeltaThreadKeys(candidates))

	highlights := make([]types.Highlight, 0, cfg.HighlightLimit)
	watchlistHits := 0
	for _, rc := range ranked {
		if len(rc.WatchlistMatches) > 0 {
			watchlistHits++
		}
		if len(highlights) < cfg.HighlightLimit {
			highlights = append(highlights, types.HighlightOf(rc))
		}
	}

	citations := make([]string, 0, cfg.CitationLimit)
	for i, h := range highlights {
		if i == cfg.CitationLimit {
			break
		}
		citations = append(citations, fmt.Sprintf("[A%d] %s — %s", i+1, h.Title, h.Source))
	}

	payload := &types.SnapshotPayload{
		State: echo,
		Counts: types.Counts{
			NewArticles:   len(candidates),
			NewThreads:    len(ranking.DeltaThreadKeys(candidates)),
			WatchlistHits: watchlistHits,
		},
		Highlights: highlights,
		Brief: e.briefs.Generate(ctx, brief.Input{
			Highlights: highlights,
			Unchanged:  unchanged,
			NewCount:   len(candidates),
			LastSeenAt: state.LastSeenAt,
			Depth:      depth,
			Now:        now,
		}),
		Citations: citations,
	}

	// Independent side effects; the response does not wait on them.
	e.fireAndForget(func(bgCtx context.Context) {
		if err := e.snapshots.StoreSnapshot(bgCtx, clientID, hash, depth, payload, now); err != nil {
			e.log.Warn("snapshot cache write failed", zap.Error(err))
		}
	})
	e.fireAndForget(func(bgCtx context.Context) {
		if err := e.states.RecordSnapshotHash(bgCtx, clientID, hash); err != nil {
			e.log.Warn("snapshot hash record failed", zap.Error(err))
		}
	})
	if e.chance() < e.opts.SweepProbability {
		e.fireAndForget(func(bgCtx context.Context) {
			n, err := e.snapshots.CleanupSnapshots(bgCtx, e.opts.Retention, now)
			if err != nil {
				e.log.Warn("snapshot sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				e.log.Info("snapshot sweep", zap.Int64("deleted", n))
			}
		})
	}

	return payload, nil
}

// lookupCached probes the cache at the requested depth first, then at the
// other depths (each has its own hash over the same candidate set), so a
// depth change alone never forces recomputation.
func (e *Engine) lookupCached(ctx context.Context, clientID string, depth types.Depth, sinceAt time.Time, ids []string, hash string, now time.Time) (*types.SnapshotPayload, bool) {
	payload, hit, err := e.snapshots.LookupSnapshot(ctx, clientID, hash, depth, e.opts.CacheTTL, now)
	if err != nil {
		e.log.Warn("cache lookup failed, recomputing", zap.Error(err))
		return nil, false
	}
	if hit {
		return payload, true
	}

	for _, alt := range []types.Depth{types.DepthDeep, types.DepthMedium, types.DepthShallow} {
		if alt == depth {
			continue
		}
		altHash := Hash(clientID, alt, sinceAt, ids)
		payload, hit, err = e.snapshots.LookupSnapshot(ctx, clientID, altHash, alt, e.opts.CacheTTL, now)
		if err != nil {
			e.log.Warn("cache lookup failed, recomputing", zap.Error(err))
			return nil, false
		}
		if hit {
			return payload, true
		}
	}
	return nil, false
}

// truncateToDepth re-truncates a cached payload to the requested depth's
// limits so a hit generated at a deeper setting still honors the caller's
// depth.
func truncateToDepth(p *types.SnapshotPayload, cfg types.DepthConfig) {
	if len(p.Highlights) > cfg.HighlightLimit {
		p.Highlights = p.Highlights[:cfg.HighlightLimit]
	}
	if len(p.Citations) > cfg.CitationLimit {
		p.Citations = p.Citations[:cfg.CitationLimit]
	}
	if len(p.Brief.Changed) > cfg.ChangedBulletLimit {
		p.Brief.Changed = p.Brief.Changed[:cfg.ChangedBulletLimit]
	}
	if len(p.Brief.WatchNext) > cfg.WatchNextLimit {
		p.Brief.WatchNext = p.Brief.WatchNext[:cfg.WatchNextLimit]
	}
}

// Acknowledge advances the client's watermark to min(untilAt, now) and
// stores the preferred depth. Last write wins under concurrency.
func (e *Engine) Acknowledge(ctx context.Context, rawClientID, depthOverride string, untilAt *time.Time) (types.ContinuityState, error) {
	clientID := NormalizeClientID(rawClientID)
	now := e.now()

	depth, ok := types.ParseDepth(depthOverride)
	if !ok {
		state, err := e.states.ResolveState(ctx, clientID)
		if err != nil {
			e.log.Warn("state resolution failed during acknowledge",
				zap.String("client", clientID), zap.Error(err))
			depth = types.DefaultDepth
		} else {
			depth = resolveDepth("", state)
		}
	}

	until := now
	if untilAt != nil {
		until = *untilAt
	}

	state, err := e.states.Acknowledge(ctx, clientID, depth, until, now)
	if err != nil {
		return types.ContinuityState{}, fmt.Errorf("failed to acknowledge: %w", err)
	}
	return state, nil
}

// fireAndForget runs fn on a background context with a bounded deadline.
func (e *Engine) fireAndForget(fn func(ctx context.Context)) {
	e.sideEffects.Go(func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(bgCtx)
	})
}
