// Package history implements the agent's message store: an ordered
// sequence of messages with three invariants: index 0
// (the system prompt; the task follows at index 1) is never evicted or
// rewritten, each tool result
// carries a stable display summary alongside its full body, and the most
// recent tool result per (tool_name, argument fingerprint) key is
// protected against compression.
package history

import (
	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

// toolMeta tracks the full-body/display-summary duality and protection
// state for a tool-result entry. Nil on every non-tool-result entry.
type toolMeta struct {
	toolName    string
	fingerprint string
	fullBody    string
	summary     string
	protected   bool
	compressed  bool // true once the message's Content has been swapped to summary
}

// Store is an ordered sequence of messages plus the bookkeeping needed to
// compress and recall tool results without breaking tool_call_id linkage.
type Store struct {
	messages []llm.Message
	meta     []*toolMeta // parallel to messages; nil entries for non-tool-result messages

	// protectedIndex maps (tool_name, fingerprint) to the index of its
	// currently-protected entry, so a new result for the same key can
	// demote the old one in O(1).
	protectedIndex map[string]int
}

// New creates a Store seeded with the system prompt and the user's task as
// messages 0 and 1. Message 0 (and, by extension, the task) is never
// evicted or rewritten by compression.
func New(systemPrompt, task string) *Store {
	s := &Store{
		protectedIndex: make(map[string]int),
	}
	s.messages = append(s.messages, llm.TextMessage("system", systemPrompt))
	s.meta = append(s.meta, nil)
	if task != "" {
		s.messages = append(s.messages, llm.TextMessage("user", task))
		s.meta = append(s.meta, nil)
	}
	return s
}

// AppendUser appends a plain user-turn message (e.g. a follow-up message in
// an interactive session).
func (s *Store) AppendUser(text string) {
	s.messages = append(s.messages, llm.TextMessage("user", text))
	s.meta = append(s.meta, nil)
}

// AppendRaw appends a message with no tool-result bookkeeping: it is never
// marked protected and pass1 compression skips it entirely (IsToolMsg is
// false in its Entries() view). Used for recall results, which must
// never be compressed or recorded — "recorded" meaning
// tracked by the protected-result/loop-detection bookkeeping that would
// let a later identical recall get served from cache instead of re-run.
func (s *Store) AppendRaw(msg llm.Message) {
	s.messages = append(s.messages, msg)
	s.meta = append(s.meta, nil)
}

// AppendAssistant appends an assistant message (text and/or tool calls).
func (s *Store) AppendAssistant(msg llm.Message) {
	s.messages = append(s.messages, msg)
	s.meta = append(s.meta, nil)
}

// fingerprintKey combines tool name and argument fingerprint into the map
// key used for protected-result tracking.
func fingerprintKey(toolName, fingerprint string) string {
	return toolName + "\x00" + fingerprint
}

// AppendToolResult appends a tool result message, recording its full body
// and display summary, and marks it protected — demoting whichever prior
// result shared the same (toolName, fingerprint) key.
func (s *Store) AppendToolResult(toolCallID, toolName, fingerprint, fullBody, summary string) {
	idx := len(s.messages)
	s.messages = append(s.messages, llm.ToolResultMessage(toolCallID, fullBody))

	key := fingerprintKey(toolName, fingerprint)
	if prevIdx, ok := s.protectedIndex[key]; ok {
		if prevIdx < len(s.meta) && s.meta[prevIdx] != nil {
			s.meta[prevIdx].protected = false
		}
	}
	s.meta = append(s.meta, &toolMeta{
		toolName:    toolName,
		fingerprint: fingerprint,
		fullBody:    fullBody,
		summary:     summary,
		protected:   true,
	})
	s.protectedIndex[key] = idx
}

// PriorResult returns the full body of the most recent tool result for
// (toolName, fingerprint). ok is false if no such result exists.
func (s *Store) PriorResult(toolName, fingerprint string) (body string, ok bool) {
	idx, found := s.protectedIndex[fingerprintKey(toolName, fingerprint)]
	if !found || idx >= len(s.meta) || s.meta[idx] == nil {
		return "", false
	}
	return s.meta[idx].fullBody, true
}

// MostRecentByName returns the full body of the most recent tool result
// for toolName regardless of fingerprint, used by recall's tool_name-only
// resolution mode.
func (s *Store) MostRecentByName(toolName string) (body string, ok bool) {
	for i := len(s.meta) - 1; i >= 0; i-- {
		if s.meta[i] != nil && s.meta[i].toolName == toolName {
			return s.meta[i].fullBody, true
		}
	}
	return "", false
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Messages returns the current model-facing view: tool results that have
// been compressed show their display summary, everything else is
// unmodified. The returned slice must not be mutated by the caller.
func (s *Store) Messages() []llm.Message {
	out := make([]llm.Message, len(s.messages))
	for i, m := range s.messages {
		if s.meta[i] != nil && s.meta[i].compressed {
			body := s.meta[i].summary
			out[i] = llm.ToolResultMessage(m.ToolCallID, body)
			continue
		}
		out[i] = m
	}
	return out
}

// Clear resets the store back to just its seed messages (system prompt and
// task).
func (s *Store) Clear() {
	seedLen := 1
	if len(s.messages) > 1 && s.messages[1].Role == "user" {
		seedLen = 2
	}
	if seedLen > len(s.messages) {
		seedLen = len(s.messages)
	}
	s.messages = s.messages[:seedLen]
	s.meta = s.meta[:seedLen]
	s.protectedIndex = make(map[string]int)
}

// entryView is a read-only snapshot of one message used by the budget
// engine's compression passes, which need to know the tool metadata
// without reaching into Store internals directly.
type entryView struct {
	Index       int
	Role        string
	IsToolMsg   bool
	Protected   bool
	Compressed  bool
	FullBody    string
	Summary     string
	ToolCallID  string
}

// Entries returns a read-only view of every message for the budget engine.
func (s *Store) Entries() []entryView {
	views := make([]entryView, len(s.messages))
	for i, m := range s.messages {
		v := entryView{Index: i, Role: m.Role, ToolCallID: m.ToolCallID}
		if s.meta[i] != nil {
			v.IsToolMsg = true
			v.Protected = s.meta[i].protected
			v.Compressed = s.meta[i].compressed
			v.FullBody = s.meta[i].fullBody
			v.Summary = s.meta[i].summary
		}
		views[i] = v
	}
	return views
}

// Compress swaps message i's model-facing body to its display summary. A
// no-op if i isn't a tool-result message or is already compressed.
func (s *Store) Compress(i int) bool {
	if i < 0 || i >= len(s.meta) || s.meta[i] == nil || s.meta[i].compressed {
		return false
	}
	s.meta[i].compressed = true
	return true
}

// RemoveRange deletes messages [start, end) and reindexes protectedIndex
// accordingly. Used by pass 2 (turn trimming). Callers must never include
// index 0 in the range.
func (s *Store) RemoveRange(start, end int) {
	if start <= 0 {
		start = 1
	}
	if end <= start || end > len(s.messages) {
		return
	}
	s.messages = append(s.messages[:start], s.messages[end:]...)
	s.meta = append(s.meta[:start], s.meta[end:]...)

	removed := end - start
	newIndex := make(map[string]int, len(s.protectedIndex))
	for key, idx := range s.protectedIndex {
		switch {
		case idx < start:
			newIndex[key] = idx
		case idx >= end:
			newIndex[key] = idx - removed
		default:
			// the protected entry itself was removed; drop the key
		}
	}
	s.protectedIndex = newIndex
}
