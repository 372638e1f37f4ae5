package brief

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidurdewan/the-digest-sub001/internal/llm"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

type mockClient struct {
	text string
	err  error

	calls int
}

func (m *mockClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.text, InputTokens: 100, OutputTokens: 50}, nil
}

func (m *mockClient) Model() string { return "mock-model" }

type mockGate struct {
	allow    bool
	recorded int
}

func (m *mockGate) Allow() bool { return m.allow }
func (m *mockGate) Record(model string, input, output int) {
	m.recorded += input + output
}

func sampleInput(depth types.Depth) Input {
	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-6 * time.Hour)
	return Input{
		Highlights: []types.Highlight{
			{ID: "1", Title: "Alpha ships v2", Source: "TechWire", Reason: "high significance (9/10)", WatchNext: "pricing announcement"},
			{ID: "2", Title: "Beta raises round", Source: "Finance Daily"},
			{ID: "3", Title: "Gamma outage resolved", Source: "Status Blog"},
		},
		Unchanged: []types.UnchangedThread{
			{Title: "Antitrust trial continues", Significance: 8},
		},
		NewCount:   3,
		LastSeenAt: &lastSeen,
		Depth:      depth,
		Now:        now,
	}
}

func TestFallbackComplete(t *testing.T) {
	b := Fallback(sampleInput(types.DepthMedium))

	assert.NotEmpty(t, b.Headline)
	assert.NotEmpty(t, b.Summary)
	require.NotNil(t, b.Changed)
	require.NotNil(t, b.Unchanged)
	require.NotNil(t, b.WatchNext)

	assert.Equal(t, "1. Alpha ships v2 (TechWire)", b.Changed[0])
	assert.Equal(t, "Still in play: Antitrust trial continues", b.Unchanged[0])
	assert.Equal(t, []string{"pricing announcement"}, b.WatchNext)
}

func TestFallbackZeroCandidates(t *testing.T) {
	in := sampleInput(types.DepthMedium)
	in.Highlights = nil
	in.NewCount = 0

	b := Fallback(in)
	assert.Contains(t, b.Headline, "No major new updates")
	assert.Empty(t, b.Changed)
	assert.NotEmpty(t, b.Unchanged, "ongoing stories still surface on quiet days")
}

func TestFallbackRespectsChangedLimit(t *testing.T) {
	in := sampleInput(types.DepthShallow)
	cfg := types.ConfigForDepth(types.DepthShallow)

	b := Fallback(in)
	assert.LessOrEqual(t, len(b.Changed), cfg.ChangedBulletLimit)
	assert.LessOrEqual(t, len(b.WatchNext), cfg.WatchNextLimit)
}

func TestGenerateBudgetExhaustedFallsBack(t *testing.T) {
	client := &mockClient{text: `{"headline":"x"}`}
	g := NewGenerator(client, &mockGate{allow: false}, time.Second, nil)

	b := g.Generate(context.Background(), sampleInput(types.DepthMedium))
	assert.Equal(t, 0, client.calls, "exhausted budget must not call the service")
	assert.Contains(t, b.Changed[0], "Alpha ships v2")
}

func TestGenerateErrorFallsBack(t *testing.T) {
	client := &mockClient{err: errors.New("network down")}
	g := NewGenerator(client, &mockGate{allow: true}, time.Second, nil)

	b := g.Generate(context.Background(), sampleInput(types.DepthMedium))
	assert.NotEmpty(t, b.Headline)
	assert.NotEmpty(t, b.Summary)
	assert.NotNil(t, b.Changed)
	assert.NotNil(t, b.WatchNext)
}

func TestGenerateInvalidJSONFallsBack(t *testing.T) {
	client := &mockClient{text: "I'm sorry, I can't produce JSON today."}
	gate := &mockGate{allow: true}
	g := NewGenerator(client, gate, time.Second, nil)

	b := g.Generate(context.Background(), sampleInput(types.DepthMedium))
	assert.NotEmpty(t, b.Headline)
	assert.Equal(t, 150, gate.recorded, "usage is reported even when output is unusable")
}

func TestGenerateMergesFieldLevel(t *testing.T) {
	// headline good, summary missing, changed has one cited and one uncited
	// bullet, watchNext malformed.
	client := &mockClient{text: `Here you go:
` + "```json\n" + `{
  "headline": "Alpha's launch dominates the morning",
  "changed": ["Alpha shipped v2 [A1]", "something happened with no citation"],
  "watchNext": "not an array"
}` + "\n```"}
	gate := &mockGate{allow: true}
	g := NewGenerator(client, gate, time.Second, nil)

	in := sampleInput(types.DepthMedium)
	fb := Fallback(in)
	b := g.Generate(context.Background(), in)

	assert.Equal(t, "Alpha's launch dominates the morning", b.Headline)
	assert.Equal(t, fb.Summary, b.Summary, "missing summary takes the fallback value")
	assert.Equal(t, []string{"Alpha shipped v2 [A1]"}, b.Changed, "uncited bullets are dropped")
	assert.Equal(t, fb.WatchNext, b.WatchNext, "malformed watchNext takes the fallback value")
}

func TestGenerateTolerantBraceExtraction(t *testing.T) {
	client := &mockClient{text: `noise before {"headline":"recovered","summary":"s","changed":["x [A1]"],"unchanged":[],"watchNext":[]} noise after`}
	g := NewGenerator(client, &mockGate{allow: true}, time.Second, nil)

	b := g.Generate(context.Background(), sampleInput(types.DepthMedium))
	assert.Equal(t, "recovered", b.Headline)
}

func TestGenerateChangedCappedAtDepthLimit(t *testing.T) {
	client := &mockClient{text: `{"headline":"h","summary":"s","changed":["1 [A1]","2 [A1]","3 [A1]","4 [A1]","5 [A1]","6 [A1]","7 [A1]","8 [A1]"]}`}
	g := NewGenerator(client, &mockGate{allow: true}, time.Second, nil)

	b := g.Generate(context.Background(), sampleInput(types.DepthShallow))
	cfg := types.ConfigForDepth(types.DepthShallow)
	assert.Len(t, b.Changed, cfg.ChangedBulletLimit)
}

func TestNilClientUsesFallback(t *testing.T) {
	g := NewGenerator(nil, &mockGate{allow: true}, time.Second, nil)
	b := g.Generate(context.Background(), sampleInput(types.DepthDeep))
	assert.NotEmpty(t, b.Headline)
	assert.NotNil(t, b.Unchanged)
}
