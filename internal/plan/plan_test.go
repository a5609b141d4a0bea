package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

// plannerMock returns a fixed body for every SendMessage call.
type plannerMock struct {
	body  string
	calls int
}

func (m *plannerMock) SendMessage(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error) {
	m.calls++
	return &llm.Response{Message: llm.TextMessage("assistant", m.body), FinishReason: "stop"}, nil
}

func (m *plannerMock) StreamMessage(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{TextDelta: m.body}
	ch <- llm.StreamEvent{FinishReason: "stop", Done: true}
	close(ch)
	return ch, nil
}

func planWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth.go"), []byte("package auth\n\nfunc ValidateToken(tok string) bool {\n\treturn tok != \"\"\n}\n"), 0644))
	return dir
}

func TestGenerateResolvesSymbolFiles(t *testing.T) {
	dir := planWorkspace(t)
	mock := &plannerMock{body: `[
		{"description": "add validation", "instruction": "wire token validation in",
		 "files": ["ValidateToken"],
		 "verification": {"kind": "file_changed", "path": "auth.go"},
		 "tool_budget": 5}
	]`}

	p, err := Generate(context.Background(), mock, dir, "validate tokens")
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, 1, mock.calls, "plan generation is a single model call")
	assert.Equal(t, []string{"auth.go"}, p.Steps[0].Files, "symbol name should resolve to its declaring path")
	assert.Equal(t, dir, p.ProjectRoot)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, StepPending, p.Steps[0].Status)
	assert.Equal(t, 5, p.Steps[0].ToolBudget)
}

func TestGenerateKeepsUnresolvedHints(t *testing.T) {
	dir := planWorkspace(t)
	mock := &plannerMock{body: `[{"description": "d", "instruction": "i", "files": ["NoSuchSymbol"], "verification": {"kind": "none"}}]`}

	p, err := Generate(context.Background(), mock, dir, "task")
	require.NoError(t, err)
	assert.Equal(t, []string{"NoSuchSymbol"}, p.Steps[0].Files)
	assert.Equal(t, defaultToolBudget, p.Steps[0].ToolBudget, "missing tool_budget falls back to the default")
}

func TestGenerateMalformedOutput(t *testing.T) {
	dir := planWorkspace(t)
	mock := &plannerMock{body: "I can't produce a plan right now, sorry."}

	_, err := Generate(context.Background(), mock, dir, "task")
	require.Error(t, err)
	var genErr *ErrPlanGeneration
	assert.ErrorAs(t, err, &genErr)
}

func TestGenerateAcceptsFencedAndWrappedOutput(t *testing.T) {
	dir := planWorkspace(t)
	mock := &plannerMock{body: "```json\n{\"steps\": [{\"description\": \"d\", \"instruction\": \"i\", \"verification\": {\"kind\": \"none\"}}]}\n```"}

	p, err := Generate(context.Background(), mock, dir, "task")
	require.NoError(t, err)
	assert.Len(t, p.Steps, 1)
}

func TestAnnotateAppendsUserNote(t *testing.T) {
	p := &Plan{Status: StatusDraft, Steps: []PlanStep{{Instruction: "do the thing"}}}
	require.NoError(t, p.Annotate(0, "skip the tests for now"))
	assert.Equal(t, "do the thing\nUser note: skip the tests for now", p.Steps[0].Instruction)
	assert.Equal(t, StatusReviewing, p.Status)
}

func TestApproveAllMovesReady(t *testing.T) {
	p := &Plan{Status: StatusDraft, Steps: []PlanStep{{Instruction: "a"}, {Instruction: "b"}}}
	require.NoError(t, p.Approve(0))
	assert.Equal(t, StatusReviewing, p.Status, "one approval is not enough")
	require.NoError(t, p.Approve(1))
	assert.Equal(t, StatusReady, p.Status)
}

func TestReorderResetsApproval(t *testing.T) {
	p := &Plan{Status: StatusDraft, Steps: []PlanStep{{Instruction: "a"}, {Instruction: "b"}}}
	p.Approve(0)
	p.Approve(1)
	require.Equal(t, StatusReady, p.Status)

	require.NoError(t, p.Reorder([]int{1, 0}))
	assert.Equal(t, "b", p.Steps[0].Instruction)
	assert.False(t, p.Steps[0].Approved)
	assert.Equal(t, StatusReviewing, p.Status)

	assert.Error(t, p.Reorder([]int{0, 0}), "duplicate index must be rejected")
	assert.Error(t, p.Reorder([]int{0}), "wrong length must be rejected")
}

func TestExecuteRefusesUnapprovedPlan(t *testing.T) {
	p := &Plan{Status: StatusDraft, Steps: []PlanStep{{Instruction: "a"}}}
	err := Execute(context.Background(), p, Config{}, StepHook{})
	assert.ErrorIs(t, err, ErrPlanNotReady)
}

func TestExecuteRefusesForeignProjectRoot(t *testing.T) {
	p := &Plan{Status: StatusReady, ProjectRoot: "/somewhere/else", Steps: []PlanStep{{Instruction: "a", Approved: true}}}
	err := Execute(context.Background(), p, Config{WorkDir: t.TempDir()}, StepHook{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to execute")
}

func TestCarryForwardSummaryFormat(t *testing.T) {
	dir := t.TempDir()
	before := snapshotWorkspace(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "auth.go"),
		[]byte("package auth\n\nfunc ValidateToken(tok string) bool { return tok != \"\" }\n"), 0644))

	after := snapshotWorkspace(dir)
	sum := carryForwardSummary(dir, before, after)
	assert.Contains(t, sum, "modified src/auth.go [ValidateToken]")
}

func TestCarryForwardSummaryEmptyWhenNothingChanged(t *testing.T) {
	dir := planWorkspace(t)
	snap := snapshotWorkspace(dir)
	assert.Equal(t, "", carryForwardSummary(dir, snap, snap))
}

func TestEstimateCostFormula(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), make([]byte, 40), 0644))

	p := &Plan{Steps: []PlanStep{{Instruction: "abcd", Files: []string{"f.txt"}}}}
	perStep, total := EstimateCost(dir, p)
	require.Len(t, perStep, 1)
	// 500 + 40/4 + 4/4 = 511, total scaled by 1.3
	assert.Equal(t, 511, perStep[0])
	base := 511
	assert.Equal(t, int(float64(base)*1.3), total)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	p := &Plan{
		Task:        "refactor",
		Status:      StatusReady,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ProjectRoot: dir,
		Steps: []PlanStep{{
			Description:  "step one",
			Instruction:  "do it",
			Files:        []string{"main.go"},
			Verification: Verification{Kind: VerifyFileChanged, Path: "main.go"},
			Status:       StepPending,
			ToolBudget:   10,
			Approved:     true,
		}},
	}

	jsonPath, err := Save(dir, p)
	require.NoError(t, err)

	loaded, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, p.Task, loaded.Task)
	assert.Equal(t, p.Steps, loaded.Steps)
	assert.Equal(t, dir, loaded.ProjectRoot, "project_root must round-trip through persistence")

	// plan.md is overwritten alongside the json
	md, err := os.ReadFile(filepath.Join(dir, ".pilot", "plan.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Plan: refactor")
	assert.Contains(t, string(md), "step one")

	latest, err := LatestPath(dir)
	require.NoError(t, err)
	assert.Equal(t, jsonPath, latest)
}

func TestVerifyFileChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
	before := snapshotWorkspace(dir)

	passed, _, err := runVerification(context.Background(), dir, "", Verification{Kind: VerifyFileChanged, Path: "a.txt"}, before)
	require.NoError(t, err)
	assert.False(t, passed, "untouched file must not count as changed")

	require.NoError(t, os.WriteFile(path, []byte("two"), 0644))
	// mtime granularity on some filesystems is coarse; force a distinct stamp
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(2*time.Second)))

	passed, detail, err := runVerification(context.Background(), dir, "", Verification{Kind: VerifyFileChanged, Path: "a.txt"}, before)
	require.NoError(t, err)
	assert.True(t, passed, detail)
}

func TestVerifyPatternAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("// TODO: fix\npackage a\n"), 0644))

	v := Verification{Kind: VerifyPatternAbsent, Pattern: "TODO", Paths: []string{"a.go"}}
	passed, _, err := runVerification(context.Background(), dir, "", v, nil)
	require.NoError(t, err)
	assert.False(t, passed)

	require.NoError(t, os.WriteFile(path, []byte("package a\n"), 0644))
	passed, _, err = runVerification(context.Background(), dir, "", v, nil)
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestVerifyBuildSuccessRequiresCommand(t *testing.T) {
	passed, detail, err := runVerification(context.Background(), t.TempDir(), "", Verification{Kind: VerifyBuildSuccess}, nil)
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Contains(t, detail, "build_command")
}
