package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/symbols"
)

const defaultToolBudget = 15

const plannerSystemPrompt = `You are the planning stage of a coding agent. Given a task and a map of
the workspace's symbols, produce an ordered list of steps that accomplish the task.

Respond with ONLY a JSON array, no prose, no markdown fences. Each element:
{
  "description": "short human summary",
  "instruction": "the instruction the executor model will receive",
  "files": ["SymbolName or relative/path.go", ...],
  "verification": {"kind": "none"|"file_changed"|"pattern_absent"|"command_success"|"build_success",
                    "path": "...", "pattern": "...", "paths": ["..."], "command": "..."},
  "tool_budget": 15
}

"files" entries may be either a symbol name (resolved against the symbol map) or a path.
Prefer "file_changed" for steps that edit exactly one file you can name; use "build_success"
when no specific file/command check is meaningful. Keep the plan to the minimum number of
steps that each do one coherent unit of work.`

// Generate makes a single planner-model call to produce a structured plan
// for task, using the compact symbol map from internal/symbols as context
// so the model can reference real declarations. Symbol-name entries in
// each step's Files are resolved to concrete paths where unambiguous;
// unresolved names are left as hints for the executor to interpret.
func Generate(ctx context.Context, client llm.LLMClient, workDir, task string) (*Plan, error) {
	idx, err := symbols.Scan(workDir)
	if err != nil {
		return nil, &ErrPlanGeneration{Reason: fmt.Sprintf("scan symbols: %s", err)}
	}

	system := plannerSystemPrompt + "\n\nWorkspace symbols:\n" + idx.ListCompact()
	messages := []llm.Message{
		llm.TextMessage("system", system),
		llm.TextMessage("user", task),
	}

	resp, err := client.SendMessage(ctx, messages, nil)
	if err != nil {
		return nil, &ErrPlanGeneration{Reason: fmt.Sprintf("planner model call: %s", err)}
	}

	steps, err := parsePlanSteps(resp.Message.ContentString())
	if err != nil {
		return nil, &ErrPlanGeneration{Reason: err.Error()}
	}
	if len(steps) == 0 {
		return nil, &ErrPlanGeneration{Reason: "planner returned zero steps"}
	}

	for i := range steps {
		if steps[i].ToolBudget <= 0 {
			steps[i].ToolBudget = defaultToolBudget
		}
		steps[i].Status = StepPending
		steps[i].Files = resolveFiles(idx, steps[i].Files)
	}

	now := time.Now()
	return &Plan{
		Task:        task,
		Steps:       steps,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
		ProjectRoot: workDir,
	}, nil
}

// rawStep mirrors PlanStep's JSON shape for decoding the planner's output
// without requiring it to set fields (Status, Approved) it has no
// business producing.
type rawStep struct {
	Description  string       `json:"description"`
	Instruction  string       `json:"instruction"`
	Files        []string     `json:"files"`
	Verification Verification `json:"verification"`
	ToolBudget   int          `json:"tool_budget"`
}

func parsePlanSteps(content string) ([]PlanStep, error) {
	content = stripCodeFence(strings.TrimSpace(content))

	var raw []rawStep
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// Some models wrap the array in {"steps": [...]}. try that shape
		// before giving up.
		var wrapped struct {
			Steps []rawStep `json:"steps"`
		}
		if werr := json.Unmarshal([]byte(content), &wrapped); werr != nil || len(wrapped.Steps) == 0 {
			return nil, fmt.Errorf("parse planner output as JSON: %w", err)
		}
		raw = wrapped.Steps
	}

	steps := make([]PlanStep, len(raw))
	for i, r := range raw {
		if r.Instruction == "" {
			return nil, fmt.Errorf("step %d missing instruction", i+1)
		}
		steps[i] = PlanStep{
			Description:  r.Description,
			Instruction:  r.Instruction,
			Files:        r.Files,
			Verification: r.Verification,
			ToolBudget:   r.ToolBudget,
		}
	}
	return steps, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 && !strings.HasPrefix(s, "\n") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// resolveFiles rewrites each entry that names a known symbol to its
// declaring path. Entries Resolve can't place unambiguously (unknown or
// multi-file symbols, or anything already path-shaped) pass through
// unchanged as hints for the executor.
func resolveFiles(idx *symbols.Index, files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		if path, ok := idx.Resolve(f); ok {
			out[i] = path
			continue
		}
		out[i] = f
	}
	return out
}
