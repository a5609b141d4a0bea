package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type recallInput struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
}

// recallTool is registered only so its schema appears in Definitions();
// the agent loop intercepts calls to "recall" before dispatch
// so the full body is never re-recorded or re-compressed. If a call ever
// reaches this function the interception was skipped, which is a bug in
// the caller, not a recoverable runtime condition.
func (r *Registry) recallTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[recallInput](input)
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("recall must be handled by the agent loop before dispatch (tool_call_id=%q tool_name=%q)", params.ToolCallID, params.ToolName)
}
