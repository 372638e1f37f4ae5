// Package ranking scores and orders delta candidates, and identifies
// still-live threads with no fresh update.
package ranking

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Weights are the scoring coefficients. The relative ordering and bounds of
// the terms matter; the exact magnitudes are tuning values.
type Weights struct {
	SignificanceMax   float64 // significance term at significance=10
	WatchlistPerMatch float64
	WatchlistCap      float64
	TopicMax          float64 // topic-engagement term at max engagement
	SummaryBonus      float64

	Reactions map[types.Reaction]float64
}

// DefaultWeights returns the stock coefficients.
func DefaultWeights() Weights {
	return Weights{
		SignificanceMax:   6,
		WatchlistPerMatch: 2.25,
		WatchlistCap:      7,
		TopicMax:          2.5,
		SummaryBonus:      0.6,
		Reactions: map[types.Reaction]float64{
			types.ReactionUseful:       1.25,
			types.ReactionSurprising:   1.5,
			types.ReactionAlreadyKnew:  -0.4,
			types.ReactionBadLink:      -1,
			types.ReactionNotImportant: -2,
		},
	}
}

// recencyBoost is a step function over item age. Sharp "is this from today"
// cutoffs, not smooth decay.
func recencyBoost(age time.Duration) float64 {
	switch {
	case age <= time.Hour:
		return 3
	case age <= 6*time.Hour:
		return 2.4
	case age <= 12*time.Hour:
		return 1.8
	case age <= 24*time.Hour:
		return 1.2
	case age <= 72*time.Hour:
		return 0.8
	default:
		return 0.3
	}
}

// matchWatchlist returns the subset of terms found in searchText.
// Matching is case-insensitive. Terms shorter than 4 characters only match
// on a word boundary so "AI" does not match inside "said".
func matchWatchlist(searchText string, terms []string) []string {
	if searchText == "" || len(terms) == 0 {
		return nil
	}
	haystack := strings.ToLower(searchText)

	var matches []string
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if len(t) < 4 {
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(t) + `\b`)
			if err != nil {
				continue
			}
			if re.MatchString(haystack) {
				matches = append(matches, term)
			}
			continue
		}
		if strings.Contains(haystack, t) {
			matches = append(matches, term)
		}
	}
	return matches
}

// Rank scores every candidate and returns them sorted by score descending.
// The sort is stable: ties preserve the original fetch order. Negative
// scores are possible; nothing is excluded here.
func Rank(cands []types.Candidate, watchlist []string, engagement map[string]int, w Weights, now time.Time) []types.RankedCandidate {
	maxEngagement := 1
	for _, n := range engagement {
		if n > maxEngagement {
			maxEngagement = n
		}
	}

	ranked := make([]types.RankedCandidate, 0, len(cands))
	for _, c := range cands {
		c.Significance = types.ClampSignificance(c.Significance)

		matches := matchWatchlist(c.SearchText, watchlist)

		sigBoost := float64(c.Significance) / 10 * w.SignificanceMax
		recBoost := recencyBoost(now.Sub(c.PublishedAt))

		wlBoost := float64(len(matches)) * w.WatchlistPerMatch
		if wlBoost > w.WatchlistCap {
			wlBoost = w.WatchlistCap
		}

		topicBoost := float64(engagement[c.Topic]) / float64(maxEngagement) * w.TopicMax

		var summaryBoost float64
		if strings.TrimSpace(c.SummaryText) != "" {
			summaryBoost = w.SummaryBonus
		}

		var reactionBoost float64
		for _, r := range c.Reactions {
			reactionBoost += w.Reactions[r]
		}

		score := sigBoost + recBoost + wlBoost + topicBoost + summaryBoost + reactionBoost

		ranked = append(ranked, types.RankedCandidate{
			Candidate:        c,
			WatchlistMatches: matches,
			Reason:           reason(c, matches, reactionBoost, topicBoost),
			Score:            score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// reason picks the one-line explanation. First applicable wins:
// watchlist match > high significance > reaction signal > topic interest >
// generic.
func reason(c types.Candidate, matches []string, reactionBoost, topicBoost float64) string {
	switch {
	case len(matches) > 0:
		return fmt.Sprintf("matches your watchlist: %s", strings.Join(matches, ", "))
	case c.Significance >= 8:
		return fmt.Sprintf("high significance (%d/10)", c.Significance)
	case reactionBoost >= 1:
		return "similar stories resonated with you"
	case topicBoost >= 1.2:
		return fmt.Sprintf("you follow %s closely", c.Topic)
	default:
		return "important recent update"
	}
}
