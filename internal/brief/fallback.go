// Package brief produces the short structured narrative at the top of a
// continuity report, either via the generation service or deterministically
// from ranked data.
package brief

import (
	"fmt"
	"strings"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Input is everything the brief needs, already ranked and truncated.
type Input struct {
	Highlights []types.Highlight
	Unchanged  []types.UnchangedThread
	NewCount   int
	LastSeenAt *time.Time
	Depth      types.Depth
	Now        time.Time
}

const fallbackUnchangedCap = 3

// Fallback synthesizes a complete Brief purely from ranked data. Always
// available, zero cost. Every field is populated; slices are empty, never
// nil.
func Fallback(in Input) types.Brief {
	cfg := types.ConfigForDepth(in.Depth)

	b := types.Brief{
		Headline:  fallbackHeadline(in),
		Summary:   fallbackSummary(in),
		Changed:   []string{},
		Unchanged: []string{},
		WatchNext: []string{},
	}

	for i, h := range in.Highlights {
		if i == cfg.ChangedBulletLimit {
			break
		}
		b.Changed = append(b.Changed, fmt.Sprintf("%d. %s (%s)", i+1, h.Title, h.Source))
	}

	for i, u := range in.Unchanged {
		if i == fallbackUnchangedCap {
			break
		}
		b.Unchanged = append(b.Unchanged, fmt.Sprintf("Still in play: %s", u.Title))
	}

	for _, h := range in.Highlights {
		if len(b.WatchNext) == cfg.WatchNextLimit {
			break
		}
		if strings.TrimSpace(h.WatchNext) == "" {
			continue
		}
		b.WatchNext = append(b.WatchNext, h.WatchNext)
	}

	return b
}

func fallbackHeadline(in Input) string {
	if in.NewCount == 0 {
		return "No major new updates since your last visit"
	}
	noun := "stories"
	if in.NewCount == 1 {
		noun = "story"
	}
	return fmt.Sprintf("%d new %s %s", in.NewCount, noun, sincePhrase(in.LastSeenAt, in.Now))
}

func fallbackSummary(in Input) string {
	if len(in.Highlights) == 0 {
		if len(in.Unchanged) > 0 {
			return fmt.Sprintf("Nothing new, but %d ongoing %s still worth watching.",
				len(in.Unchanged), pluralize("story", "stories", len(in.Unchanged)))
		}
		return "Quiet period. Nothing new across your sources."
	}

	top := in.Highlights[0]
	summary := fmt.Sprintf("Leading: %s (%s).", top.Title, top.Source)

	var runnerUps []string
	for _, h := range in.Highlights[1:] {
		if len(runnerUps) == 2 {
			break
		}
		if h.Source == "" || h.Source == top.Source || contains(runnerUps, h.Source) {
			continue
		}
		runnerUps = append(runnerUps, h.Source)
	}
	if len(runnerUps) > 0 {
		summary += fmt.Sprintf(" Also new from %s.", strings.Join(runnerUps, " and "))
	}
	return summary
}

func sincePhrase(lastSeen *time.Time, now time.Time) string {
	if lastSeen == nil {
		return "in the last day"
	}
	elapsed := now.Sub(*lastSeen)
	switch {
	case elapsed < 2*time.Hour:
		return "in the last hour or so"
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("in the last %d hours", int(elapsed.Hours()))
	case elapsed < 48*time.Hour:
		return "since yesterday"
	default:
		return fmt.Sprintf("in the last %d days", int(elapsed.Hours()/24))
	}
}

func pluralize(singular, plural string, n int) string {
	if n == 1 {
		return singular
	}
	return plural
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
