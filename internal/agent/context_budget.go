package agent

import (
	"github.com/lowkaihon/pilot/internal/budget"
	"github.com/lowkaihon/pilot/internal/history"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

// loopDetectorWindow bounds how many recent (tool, fingerprint) pairs the
// loop detector remembers; the repeat threshold itself is always 2
// consecutive identical calls (budget.LoopDetector).
const loopDetectorWindow = 8

// buildEphemeralStore reconstructs a history.Store from the agent's
// persistent message slice, deriving each tool result's (tool name,
// fingerprint) from the assistant tool call that produced it. a.messages
// remains the single persistent source of truth — rebuilding the store
// fresh on every iteration and discarding it afterward keeps
// budget.CompressToFit's compression decisions a pure function of the full
// history, which is what makes repeated calls idempotent.
func (a *Agent) buildEphemeralStore() *history.Store {
	if len(a.messages) == 0 {
		return history.New("", "")
	}

	sys := ""
	if a.messages[0].Role == "system" {
		sys = a.messages[0].ContentString()
	}
	store := history.New(sys, "")

	for i := 1; i < len(a.messages); i++ {
		m := a.messages[i]
		switch {
		case m.Role == "tool":
			if a.recallResults[m.ToolCallID] {
				store.AppendRaw(m)
				continue
			}
			toolName := a.toolNameForCallID(m.ToolCallID)
			fingerprint := a.fingerprintForCallID(m.ToolCallID)
			body := m.ContentString()
			store.AppendToolResult(m.ToolCallID, toolName, fingerprint, body, history.Summarize(toolName, body))
		case m.Role == "assistant":
			store.AppendAssistant(m)
		default:
			store.AppendUser(m.ContentString())
		}
	}
	return store
}

// toolNameForCallID scans backward for the assistant tool call with this
// ID and returns its function name, or "" if none is found.
func (a *Agent) toolNameForCallID(callID string) string {
	for i := len(a.messages) - 1; i >= 0; i-- {
		m := a.messages[i]
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == callID {
				return tc.Function.Name
			}
		}
	}
	return ""
}

// fingerprintForCallID is like toolNameForCallID but returns the
// canonicalized argument fingerprint instead.
func (a *Agent) fingerprintForCallID(callID string) string {
	for i := len(a.messages) - 1; i >= 0; i-- {
		m := a.messages[i]
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == callID {
				return history.Fingerprint(tc.Function.Arguments)
			}
		}
	}
	return ""
}

// priorToolResult returns the full body of the most recent recorded result
// for (toolName, fingerprint), used by loop-break cache serving.
func (a *Agent) priorToolResult(toolName, fingerprint string) (string, bool) {
	for i := len(a.messages) - 1; i >= 0; i-- {
		m := a.messages[i]
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.Function.Name != toolName || history.Fingerprint(tc.Function.Arguments) != fingerprint {
				continue
			}
			if body, ok := a.toolResultBodyAfter(i, tc.ID); ok {
				return body, true
			}
		}
	}
	return "", false
}

// mostRecentResultByName returns the full body of the most recent result
// for toolName regardless of arguments, used by recall's tool_name-only
// resolution mode.
func (a *Agent) mostRecentResultByName(toolName string) (string, bool) {
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].Role != "tool" {
			continue
		}
		if a.toolNameForCallID(a.messages[i].ToolCallID) == toolName {
			return a.messages[i].ContentString(), true
		}
	}
	return "", false
}

func (a *Agent) toolResultBodyAfter(assistantIdx int, callID string) (string, bool) {
	for j := assistantIdx + 1; j < len(a.messages); j++ {
		if a.messages[j].Role == "tool" && a.messages[j].ToolCallID == callID {
			return a.messages[j].ContentString(), true
		}
	}
	return "", false
}

// resultByCallID returns the full body recorded for a specific tool call,
// used by recall's tool_call_id resolution mode.
func (a *Agent) resultByCallID(callID string) (string, bool) {
	for _, m := range a.messages {
		if m.Role == "tool" && m.ToolCallID == callID {
			return m.ContentString(), true
		}
	}
	return "", false
}

// messagesForRequest rebuilds the ephemeral store, runs the budget engine's
// compress-to-fit passes against it, and returns the resulting model-facing
// message slice. This never mutates a.messages: compression only affects
// what's sent to the model this round, never the persistent history, so
// recall can always serve a full body back out.
func (a *Agent) messagesForRequest() ([]llm.Message, budget.Result) {
	store := a.buildEphemeralStore()
	res := budget.CompressToFit(store, a.contextWindow)
	return store.Messages(), res
}
