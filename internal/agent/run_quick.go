package agent

import (
	"context"
	"encoding/json"
	"fmt"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/tools"
)

// QuickAllowedTools restricts run_quick to a minimal, fast-path tool set:
// one edit, one read-only shell command, one search — no explore
// sub-agent, no plan. bash is further restricted to allowlisted read-only
// commands (tools.IsReadOnlyCommand); anything mutating still goes
// through the normal confirmation flow.
var QuickAllowedTools = map[string]bool{"edit_file": true, "bash": true, "search": true}

func filterToolDefs(defs []llm.ToolDef, allowed map[string]bool) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(defs))
	for _, d := range defs {
		if allowed[d.Function.Name] {
			out = append(out, d)
		}
	}
	return out
}

// RunQuick executes a single restricted round-trip: one model call and at
// most one tool call. A bash call must pass the read-only allowlist or the
// run terminates with a tool-level refusal; an edit still shows the diff
// and asks for confirmation like a normal run.
func (a *Agent) RunQuick(ctx context.Context, task string, term UI) (string, error) {
	defs := filterToolDefs(a.tools.Definitions(), QuickAllowedTools)
	messages := []llm.Message{
		llm.TextMessage("system", a.systemPrompt()),
		llm.TextMessage("user", task),
	}

	resp, err := a.client.SendMessage(ctx, messages, defs)
	if err != nil {
		return "", fmt.Errorf("quick mode LLM error: %w", err)
	}
	if len(resp.Message.ToolCalls) == 0 {
		return resp.Message.ContentString(), nil
	}

	tc := resp.Message.ToolCalls[0]
	if !QuickAllowedTools[tc.Function.Name] {
		return "", fmt.Errorf("quick mode: model called disallowed tool %q", tc.Function.Name)
	}

	if tc.Function.Name == "bash" {
		var params struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &params); err != nil {
			return "", fmt.Errorf("quick mode: invalid bash arguments: %w", err)
		}
		if !tools.IsReadOnlyCommand(params.Command) {
			return "", fmt.Errorf("quick mode: bash is restricted to read-only commands, refusing %q", params.Command)
		}
	}

	input := json.RawMessage(tc.Function.Arguments)
	output, err := a.tools.Execute(ctx, tc.Function.Name, input)
	if err != nil {
		confirm, ok := err.(*tools.NeedsConfirmation)
		if !ok {
			return "", fmt.Errorf("quick mode tool execution failed: %w", err)
		}
		output, _ = a.handleConfirmation(confirm, term, noopInterrupter{})
	}
	return output, nil
}
