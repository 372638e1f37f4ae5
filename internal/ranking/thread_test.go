package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

func TestThreadKeyExplicitIDWins(t *testing.T) {
	c := types.Candidate{ID: "1", Title: "Some Story", ThreadID: "thread-42"}
	assert.Equal(t, "thread-42", ThreadKey(c))
}

func TestThreadKeyTokenOrderIndependent(t *testing.T) {
	a := types.Candidate{Title: "Fed raises rates again amid inflation fears"}
	b := types.Candidate{Title: "Inflation fears: Fed again raises rates"}
	assert.Equal(t, ThreadKey(a), ThreadKey(b))
}

func TestThreadKeyStripsPunctuationAndStopWords(t *testing.T) {
	a := types.Candidate{Title: "The Merger, Explained!"}
	b := types.Candidate{Title: "merger explained"}
	assert.Equal(t, ThreadKey(a), ThreadKey(b))
}

func TestBuildUnchanged(t *testing.T) {
	now := time.Now()
	delta := []types.Candidate{
		{ID: "d1", Title: "Chip export rules tighten further", PublishedAt: now},
	}
	lookback := []types.Candidate{
		// Same thread as delta item: must be excluded.
		{ID: "l1", Title: "Chip export rules tighten further", Significance: 9, StoryType: "developing", PublishedAt: now.Add(-30 * time.Hour)},
		// Live and absent from delta: included.
		{ID: "l2", Title: "Antitrust trial enters week three", Significance: 8, StoryType: "developing", PublishedAt: now.Add(-40 * time.Hour)},
		// Duplicate normalized title: deduplicated.
		{ID: "l3", Title: "Antitrust Trial enters week three!", Significance: 8, StoryType: "update", PublishedAt: now.Add(-50 * time.Hour)},
		// Below the significance bar.
		{ID: "l4", Title: "Quiet infra migration", Significance: 5, StoryType: "update", PublishedAt: now.Add(-20 * time.Hour)},
		// Wrong story type.
		{ID: "l5", Title: "Weekend recap roundup", Significance: 9, StoryType: "roundup", PublishedAt: now.Add(-20 * time.Hour)},
	}

	unchanged := BuildUnchanged(lookback, DeltaThreadKeys(delta))
	require.Len(t, unchanged, 1)
	assert.Equal(t, "Antitrust trial enters week three", unchanged[0].Title)
}

func TestBuildUnchangedCap(t *testing.T) {
	now := time.Now()
	titles := []string{
		"alpha launch delayed", "beta funding round", "gamma outage postmortem",
		"delta lawsuit filed", "epsilon merger review", "zeta chip shortage",
	}
	var lookback []types.Candidate
	for i, title := range titles {
		lookback = append(lookback, types.Candidate{
			ID: title, Title: title, Significance: 8, StoryType: "developing",
			PublishedAt: now.Add(-time.Duration(i+10) * time.Hour),
		})
	}

	unchanged := BuildUnchanged(lookback, map[string]struct{}{})
	assert.Len(t, unchanged, 5)
}

func TestBuildUnchangedDefaultsStoryType(t *testing.T) {
	lookback := []types.Candidate{
		{ID: "x", Title: "untyped but significant story", Significance: 8},
	}
	unchanged := BuildUnchanged(lookback, map[string]struct{}{})
	// Empty story type defaults to the neutral "update", which is live.
	require.Len(t, unchanged, 1)
}
