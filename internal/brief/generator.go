package brief

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vidurdewan/the-digest-sub001/internal/llm"
	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// Gate answers whether a paid generation call is currently allowed, and
// receives usage reports from completed calls.
type Gate interface {
	Allow() bool
	Record(model string, input, output int)
}

// Generator produces briefs, preferring the generation service when it is
// configured and within budget, falling back to deterministic synthesis for
// everything the service cannot supply. Generation failure is never fatal.
type Generator struct {
	client  llm.Client // nil disables the generation path
	gate    Gate
	log     *zap.Logger
	timeout time.Duration
}

// NewGenerator wires a brief generator. A nil client or gate pins it to the
// deterministic path.
func NewGenerator(client llm.Client, gate Gate, timeout time.Duration, log *zap.Logger) *Generator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{client: client, gate: gate, log: log, timeout: timeout}
}

// Generate returns a structurally complete Brief. LLM output is merged with
// the deterministic fallback at field granularity: any missing or malformed
// field takes the fallback value for that field only.
func (g *Generator) Generate(ctx context.Context, in Input) types.Brief {
	fb := Fallback(in)

	if g.client == nil || g.gate == nil || !g.gate.Allow() {
		return fb
	}
	if len(in.Highlights) == 0 {
		// Nothing to cite; the deterministic quiet-period brief is strictly
		// better than a paid call about nothing.
		return fb
	}

	cfg := types.ConfigForDepth(in.Depth)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Complete(callCtx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(in, cfg),
		MaxTokens:   cfg.MaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		g.log.Warn("brief generation failed, using fallback", zap.Error(err))
		return fb
	}
	g.gate.Record(g.client.Model(), resp.InputTokens, resp.OutputTokens)

	fields, ok := decodeBriefObject(resp.Text)
	if !ok {
		g.log.Warn("brief generation returned unparseable output, using fallback")
		return fb
	}
	return mergeBrief(fields, fb, cfg)
}

const systemPrompt = `You write terse, factual news continuity briefs. ` +
	`Respond with a single JSON object and nothing else.`

func buildPrompt(in Input, cfg types.DepthConfig) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("The reader last checked %s. %d new articles arrived.\n\n",
		sincePhrase(in.LastSeenAt, in.Now), in.NewCount))

	b.WriteString("New articles, ranked by relevance:\n")
	for i, h := range in.Highlights {
		if i == cfg.MaxSourceArticles {
			break
		}
		b.WriteString(fmt.Sprintf("[A%d] %s — %s", i+1, h.Title, h.Source))
		if h.Reason != "" {
			b.WriteString(fmt.Sprintf(" (%s)", h.Reason))
		}
		b.WriteString("\n")
	}

	if len(in.Unchanged) > 0 {
		b.WriteString("\nOngoing stories with no new development:\n")
		for _, u := range in.Unchanged {
			b.WriteString(fmt.Sprintf("- %s\n", u.Title))
		}
	}

	b.WriteString(fmt.Sprintf(`
Return strict JSON with exactly these fields:
{
  "headline": "one sentence, what changed overall",
  "summary": "2-3 sentences connecting the most important developments",
  "changed": ["up to %d bullets; every bullet MUST cite at least one source tag like [A1]"],
  "unchanged": ["short continuity notes on the ongoing stories, if any"],
  "watchNext": ["up to %d things to watch for next"]
}
No markdown, no commentary, JSON only.`, cfg.ChangedBulletLimit, cfg.WatchNextLimit))

	return b.String()
}

// decodeBriefObject parses model output into per-field raw JSON. Strict
// parse first, then a fenced code block, then the first balanced object,
// then the first-brace-to-last-brace span.
func decodeBriefObject(raw string) (map[string]json.RawMessage, bool) {
	for _, candidate := range []string{
		raw,
		extractFencedBlock(raw),
		extractObject(raw),
		extractBraceSpan(raw),
	} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &fields); err == nil {
			return fields, true
		}
	}
	return nil, false
}

// mergeBrief validates each field of the model output and substitutes the
// deterministic value for anything missing or malformed.
func mergeBrief(fields map[string]json.RawMessage, fb types.Brief, cfg types.DepthConfig) types.Brief {
	out := fb

	if s, ok := decodeString(fields["headline"]); ok {
		out.Headline = s
	}
	if s, ok := decodeString(fields["summary"]); ok {
		out.Summary = s
	}

	if bullets, ok := decodeStrings(fields["changed"]); ok {
		valid := bullets[:0]
		for _, bullet := range bullets {
			// Uncited claims are dropped rather than trusted.
			if strings.Contains(bullet, "[A") {
				valid = append(valid, bullet)
			}
		}
		if len(valid) > 0 {
			if len(valid) > cfg.ChangedBulletLimit {
				valid = valid[:cfg.ChangedBulletLimit]
			}
			out.Changed = valid
		}
	}

	if notes, ok := decodeStrings(fields["unchanged"]); ok && len(notes) > 0 {
		out.Unchanged = notes
	}
	if watch, ok := decodeStrings(fields["watchNext"]); ok && len(watch) > 0 {
		if len(watch) > cfg.WatchNextLimit {
			watch = watch[:cfg.WatchNextLimit]
		}
		out.WatchNext = watch
	}

	return out
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func decodeStrings(raw json.RawMessage) ([]string, bool) {
	if raw == nil {
		return nil, false
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, true
}
