package ranking

import (
	"sort"
	"strings"

	"github.com/vidurdewan/the-digest-sub001/internal/types"
)

// stopWords excluded from normalized-title thread keys.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "with": {}, "after": {}, "over": {},
	"amid": {}, "its": {}, "their": {}, "has": {}, "have": {}, "will": {},
}

const threadKeyTokens = 7

// ThreadKey groups candidates describing the same ongoing story. The
// explicit thread id wins when present; otherwise the key is built from the
// title's significant tokens, sorted so token order cannot split a thread.
// Keys are for grouping only and are never persisted as identity.
func ThreadKey(c types.Candidate) string {
	if c.ThreadID != "" {
		return c.ThreadID
	}
	return normalizedTitleKey(c.Title)
}

func normalizedTitleKey(title string) string {
	lower := strings.ToLower(title)

	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := make([]string, 0, threadKeyTokens)
	for _, tok := range strings.Fields(b.String()) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == threadKeyTokens {
			break
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// DeltaThreadKeys returns the set of thread keys present in the delta window.
func DeltaThreadKeys(cands []types.Candidate) map[string]struct{} {
	keys := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		keys[ThreadKey(c)] = struct{}{}
	}
	return keys
}

// liveStoryTypes are the story types considered still-developing.
var liveStoryTypes = map[string]struct{}{
	"developing": {},
	"breaking":   {},
	"analysis":   {},
	"update":     {},
}

const unchangedLimit = 5

// BuildUnchanged identifies stories from the look-back window that are still
// significant but had no fresh update in the current delta: "still relevant,
// nothing new to report". Deduplicated by normalized title, capped at 5.
func BuildUnchanged(lookback []types.Candidate, deltaKeys map[string]struct{}) []types.UnchangedThread {
	seen := make(map[string]struct{})
	var out []types.UnchangedThread

	for _, c := range lookback {
		if types.ClampSignificance(c.Significance) < 7 {
			continue
		}
		storyType := c.StoryType
		if storyType == "" {
			storyType = types.StoryTypeUpdate
		}
		if _, live := liveStoryTypes[storyType]; !live {
			continue
		}
		if _, fresh := deltaKeys[ThreadKey(c)]; fresh {
			continue
		}
		titleKey := normalizedTitleKey(c.Title)
		if _, dup := seen[titleKey]; dup {
			continue
		}
		seen[titleKey] = struct{}{}

		out = append(out, types.UnchangedThread{
			Title:        c.Title,
			Topic:        c.Topic,
			Significance: types.ClampSignificance(c.Significance),
			PublishedAt:  c.PublishedAt,
		})
		if len(out) == unchangedLimit {
			break
		}
	}
	return out
}
