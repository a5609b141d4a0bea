package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lowkaihon/pilot/internal/budget"
	"github.com/lowkaihon/pilot/internal/history"
	"github.com/lowkaihon/pilot/internal/hooks"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/tools"
	"github.com/lowkaihon/pilot/internal/ui"
)

// editTools are the native tools whose successful completion should fire
// the on_edit lifecycle hook.
var editTools = map[string]bool{"write_file": true, "edit_file": true, "patch_file": true}

// dispatchToolCall routes one tool call to the right handler: recall is
// intercepted before the registry ever sees it, namespaced names go to
// the MCP manager, an immediate repeat of the last call is served from
// the prior recorded result instead of re-executed (loop-break), and
// everything else goes to the native registry.
// raw reports whether this result must be excluded from compression
// bookkeeping when appended to history (true for recall's own output).
func (a *Agent) dispatchToolCall(ctx context.Context, tc llm.ToolCall, term UI, listener ui.Interrupter, allowConfirm bool) (output string, raw bool) {
	if !json.Valid([]byte(tc.Function.Arguments)) {
		return fmt.Sprintf("Error: invalid JSON in tool arguments: %s", tc.Function.Arguments), false
	}

	name := tc.Function.Name
	input := json.RawMessage(tc.Function.Arguments)

	if name == "recall" {
		return a.dispatchRecall(input), true
	}

	if a.mcpMgr != nil && a.mcpMgr.IsNamespaced(name) {
		out, err := a.mcpMgr.Call(ctx, name, input)
		if err != nil {
			return fmt.Sprintf("Error: %s", err), false
		}
		return out, false
	}

	fingerprint := history.Fingerprint(tc.Function.Arguments)
	a.loopMu.Lock()
	isRepeat := a.loopDetector.Check(name, fingerprint)
	a.loopDetector.Record(name, fingerprint)
	a.loopMu.Unlock()
	if isRepeat {
		if cached, ok := a.priorToolResult(name, fingerprint); ok {
			return cached + budget.CacheBreakAnnotation, false
		}
	}

	out, toolErr := a.tools.Execute(ctx, name, input)
	applied := toolErr == nil
	if toolErr != nil {
		if confirm, ok := toolErr.(*tools.NeedsConfirmation); ok && allowConfirm {
			out, applied = a.handleConfirmation(confirm, term, listener)
			toolErr = nil
		} else if ok {
			out = "User denied the operation." // non-interactive path can't confirm; deny by default
			toolErr = nil
		} else {
			out = fmt.Sprintf("Error: %s", toolErr)
		}
	}

	if a.hookRunner != nil && editTools[name] && applied {
		out += a.hookRunner.Run(ctx, hooks.OnEdit)
	}

	return out, false
}

// dispatchRecall resolves a recall call against the persistent message
// history, which always holds full tool-result bodies regardless of what
// the budget engine compressed away for the model's view this round.
func (a *Agent) dispatchRecall(input json.RawMessage) string {
	var params struct {
		ToolCallID string `json:"tool_call_id"`
		ToolName   string `json:"tool_name"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return fmt.Sprintf("Error: invalid recall arguments: %s", err)
	}

	if params.ToolCallID != "" {
		if body, ok := a.resultByCallID(params.ToolCallID); ok {
			return body
		}
	}
	if params.ToolName != "" {
		if body, ok := a.mostRecentResultByName(params.ToolName); ok {
			return body
		}
	}
	return "Error: no matching recorded tool result found."
}
