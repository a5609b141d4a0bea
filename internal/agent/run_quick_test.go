package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/tools"
	"github.com/lowkaihon/pilot/internal/ui"
)

func TestRunQuickPlainAnswer(t *testing.T) {
	mock := &mockLLMClient{
		responses: []llm.Response{
			{Message: llm.TextMessage("assistant", "4"), FinishReason: "stop"},
		},
	}
	dir := t.TempDir()
	ag := New(mock, tools.NewRegistry(dir), dir, 128000)

	out, err := ag.RunQuick(context.Background(), "what is 2+2", ui.NewTerminal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "4" {
		t.Errorf("unexpected answer: %q", out)
	}
	if mock.callCount != 1 {
		t.Errorf("quick mode must issue exactly one model call, got %d", mock.callCount)
	}
}

func TestRunQuickRefusesDisallowedTool(t *testing.T) {
	writeArgs, _ := json.Marshal(map[string]any{"path": "x.txt", "content": "hi"})
	mock := &mockLLMClient{
		responses: []llm.Response{
			{
				Message: llm.AssistantMessage(nil, []llm.ToolCall{
					{ID: "c1", Type: "function", Function: llm.FunctionCall{Name: "write_file", Arguments: string(writeArgs)}},
				}),
				FinishReason: "tool_calls",
			},
		},
	}
	dir := t.TempDir()
	ag := New(mock, tools.NewRegistry(dir), dir, 128000)

	_, err := ag.RunQuick(context.Background(), "create a file", ui.NewTerminal())
	if err == nil {
		t.Fatal("expected disallowed-tool error")
	}
	if !strings.Contains(err.Error(), "write_file") {
		t.Errorf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("quick mode must not re-enter the model, got %d calls", mock.callCount)
	}
}

func TestRunQuickDispatchesAtMostOneTool(t *testing.T) {
	searchArgs, _ := json.Marshal(map[string]string{"pattern": "TODO"})
	mock := &mockLLMClient{
		responses: []llm.Response{
			{
				Message: llm.AssistantMessage(nil, []llm.ToolCall{
					{ID: "c1", Type: "function", Function: llm.FunctionCall{Name: "search", Arguments: string(searchArgs)}},
					{ID: "c2", Type: "function", Function: llm.FunctionCall{Name: "search", Arguments: string(searchArgs)}},
				}),
				FinishReason: "tool_calls",
			},
		},
	}
	dir := t.TempDir()
	ag := New(mock, tools.NewRegistry(dir), dir, 128000)

	out, err := ag.RunQuick(context.Background(), "any TODOs?", ui.NewTerminal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No instances found") {
		t.Errorf("expected the single search result, got: %q", out)
	}
	if mock.callCount != 1 {
		t.Errorf("expected exactly one model call, got %d", mock.callCount)
	}
}

func TestRunQuickRefusesMutatingBash(t *testing.T) {
	bashArgs, _ := json.Marshal(map[string]string{"command": "rm -rf ."})
	mock := &mockLLMClient{
		responses: []llm.Response{
			{
				Message: llm.AssistantMessage(nil, []llm.ToolCall{
					{ID: "c1", Type: "function", Function: llm.FunctionCall{Name: "bash", Arguments: string(bashArgs)}},
				}),
				FinishReason: "tool_calls",
			},
		},
	}
	dir := t.TempDir()
	ag := New(mock, tools.NewRegistry(dir), dir, 128000)

	_, err := ag.RunQuick(context.Background(), "clean up", ui.NewTerminal())
	if err == nil {
		t.Fatal("expected read-only bash refusal")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("refusal must not re-enter the model, got %d calls", mock.callCount)
	}
}

func TestLoopBreakServesCachedSecondCall(t *testing.T) {
	searchArgs, _ := json.Marshal(map[string]string{"pattern": "TODO"})
	call := func(id string) llm.Response {
		return llm.Response{
			Message: llm.AssistantMessage(nil, []llm.ToolCall{
				{ID: id, Type: "function", Function: llm.FunctionCall{Name: "search", Arguments: string(searchArgs)}},
			}),
			FinishReason: "tool_calls",
		}
	}
	mock := &mockLLMClient{
		responses: []llm.Response{
			call("c1"),
			call("c2"),
			{Message: llm.TextMessage("assistant", "changing strategy."), FinishReason: "stop"},
		},
	}

	dir := t.TempDir()
	ag := New(mock, tools.NewRegistry(dir), dir, 128000)
	term := ui.NewTerminal()

	if err := ag.Run(context.Background(), "find TODOs", term); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var toolBodies []string
	for _, m := range ag.MessageHistory() {
		if m.Role == "tool" {
			toolBodies = append(toolBodies, m.ContentString())
		}
	}
	if len(toolBodies) != 2 {
		t.Fatalf("expected 2 tool results, got %d", len(toolBodies))
	}
	if strings.Contains(toolBodies[0], "loop-break") {
		t.Error("first call must dispatch normally")
	}
	if !strings.Contains(toolBodies[1], "loop-break") {
		t.Errorf("second identical call must be served from cache with the loop-break note, got: %q", toolBodies[1])
	}
	if !strings.Contains(toolBodies[1], "No instances found") {
		t.Errorf("cached result must carry the prior body, got: %q", toolBodies[1])
	}
}
