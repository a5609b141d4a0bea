// Package budget implements the four-pass context-budget pipeline:
// preamble assembly, tool-result compression, turn trimming, and loop
// detection. The LLM-driven full compaction is not part of this package:
// it lives in the agent package (compactIfNeeded) and runs before these
// passes whenever the history exceeds 80% of the window.
package budget

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/lowkaihon/pilot/internal/history"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

// CharsPerToken is the conservative token-estimation heuristic: tokens ≈
// chars / 4.
const CharsPerToken = 4

// ContextBufferFraction is the default reserve (20% of the window) held
// back for the model's response and tool schemas.
const ContextBufferFraction = 0.2

// EstimateTokens applies the chars/4 heuristic to one message.
func EstimateTokens(msg llm.Message) int {
	tokens := len(msg.Role) / CharsPerToken
	if msg.Content != nil {
		tokens += len(*msg.Content) / CharsPerToken
	}
	for _, tc := range msg.ToolCalls {
		tokens += len(tc.Function.Name) / CharsPerToken
		tokens += len(tc.Function.Arguments) / CharsPerToken
	}
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateToolDefTokens estimates the token cost of the tool schemas sent
// with every request.
func EstimateToolDefTokens(defs []llm.ToolDef) int {
	data, err := json.Marshal(defs)
	if err != nil {
		return 0
	}
	tokens := len(data) / CharsPerToken
	if tokens < 1 && len(defs) > 0 {
		tokens = 1
	}
	return tokens
}

// EstimateTotal sums EstimateTokens over every message in the store.
func EstimateTotal(s *history.Store) int {
	total := 0
	for _, m := range s.Messages() {
		total += EstimateTokens(m)
	}
	return total
}

// Reserve computes the default headroom R = W × ContextBufferFraction.
func Reserve(window int) int {
	return int(float64(window) * ContextBufferFraction)
}

// PreambleBudgetFraction is the default fraction of the context window
// reserved for preamble content (attached files, conventions, git status,
// carry-forward summaries) — its own sub-budget, separate from the
// response/tool reserve R.
const PreambleBudgetFraction = 0.25

// PreambleBudget computes the token sub-budget AssemblePreamble trims
// against. Treated as unlimited when window is unset, so callers without a
// configured context window still get full preamble content.
func PreambleBudget(window int) int {
	if window <= 0 {
		return 1 << 30
	}
	return int(float64(window) * PreambleBudgetFraction)
}

// Result reports what the engine did, for UI/logging.
type Result struct {
	TokensBefore     int
	TokensAfter      int
	ResultsCompressed int
	TurnsDropped     int
	StillOverBudget  bool
}

// CompressToFit runs passes 1 and 2 against store until its estimated token
// count is at or under window-reserve, or there's nothing left to trim.
// Deterministic and idempotent: running it again on an already-compressed
// store with no new messages is a no-op.
func CompressToFit(s *history.Store, window int) Result {
	reserve := Reserve(window)
	target := window - reserve

	res := Result{TokensBefore: EstimateTotal(s)}
	if target <= 0 || res.TokensBefore <= target {
		res.TokensAfter = res.TokensBefore
		return res
	}

	res.ResultsCompressed = pass1Compress(s, target)
	res.TurnsDropped = pass2Trim(s, target)

	res.TokensAfter = EstimateTotal(s)
	res.StillOverBudget = res.TokensAfter > target
	return res
}

// pass1Compress walks tool messages oldest→newest, compressing each
// unprotected result until the store is at or under target, or there are
// no more unprotected results to compress.
func pass1Compress(s *history.Store, target int) int {
	compressed := 0
	for {
		if EstimateTotal(s) <= target {
			return compressed
		}
		entries := s.Entries()
		progressed := false
		for _, e := range entries {
			if !e.IsToolMsg || e.Protected || e.Compressed {
				continue
			}
			if s.Compress(e.Index) {
				compressed++
				progressed = true
			}
			if EstimateTotal(s) <= target {
				return compressed
			}
		}
		if !progressed {
			return compressed
		}
	}
}

// pass2Trim drops the oldest non-index-0 user/assistant turn pairs, oldest
// first, until the store is at or under target or nothing droppable remains.
//
// A "turn pair" here is the smallest contiguous run starting at a user
// message and continuing through the messages that precede the next user
// message (i.e. that user turn plus the assistant/tool exchange it
// produced). Index 0 (and the seeded task message, when present at index
// 1) are never included in a droppable range. The newest turn is trimmed
// only down to its opening user message plus its latest assistant message
// and the tool results after it; those are never dropped.
func pass2Trim(s *history.Store, target int) int {
	dropped := 0
	for EstimateTotal(s) > target {
		entries := s.Entries()
		if len(entries) <= 2 {
			return dropped // only the seed (system [+ task]) remains
		}

		// the task at index 1 (if present) is part of the seed and must
		// not be dropped; the next droppable turn starts at index 2.
		start := 2
		if start >= len(entries) {
			return dropped
		}
		end := start + 1
		for end < len(entries) && entries[end].Role != "user" {
			end++
		}
		if end == len(entries) {
			// the newest turn: keep its opening user message and its
			// latest assistant message with the tool results after it
			if entries[start].Role == "user" {
				start++
			}
			for end > start && entries[end-1].Role != "assistant" {
				end--
			}
			end--
			if end <= start {
				return dropped
			}
		}
		s.RemoveRange(start, end)
		dropped++
	}
	return dropped
}

// PreambleItem is one piece of preamble content with a relative recency
// used to decide trim order (lower Recency = attached/created longer ago,
// trimmed first).
type PreambleItem struct {
	Label    string
	Body     string
	Recency  int
}

// AssemblePreamble composes preamble items within their own sub-budget:
// while the estimate is over budget and more than one item is left, the
// item with the lowest Recency (least recently attached) is dropped. Kept
// items are rendered in the order given; if the rendered text is still
// longer than budgetTokens*CharsPerToken bytes, its end is cut off, so the
// item listed last is the first one truncated.
func AssemblePreamble(items []PreambleItem, budgetTokens int) string {
	if budgetTokens <= 0 {
		return ""
	}
	ordered := make([]PreambleItem, len(items))
	copy(ordered, items)

	// drop least-recently-attached first until the total fits, never
	// dropping below one item so there's always some preamble.
	for len(ordered) > 1 && estimatePreambleTokens(ordered) > budgetTokens {
		oldestIdx := 0
		for i, it := range ordered {
			if it.Recency < ordered[oldestIdx].Recency {
				oldestIdx = i
			}
		}
		ordered = append(ordered[:oldestIdx], ordered[oldestIdx+1:]...)
	}

	var out string
	for _, it := range ordered {
		out += it.Label + ":\n" + it.Body + "\n\n"
	}
	// if the rendered text is still over budget, cut its tail by chars,
	// backing up to a rune boundary so a multi-byte scalar is never split
	maxChars := budgetTokens * CharsPerToken
	if len(out) > maxChars && maxChars > 0 {
		for maxChars > 0 && !utf8.RuneStart(out[maxChars]) {
			maxChars--
		}
		out = out[:maxChars] + "...[truncated]"
	}
	return out
}

func estimatePreambleTokens(items []PreambleItem) int {
	total := 0
	for _, it := range items {
		total += (len(it.Label) + len(it.Body)) / CharsPerToken
	}
	return total
}
