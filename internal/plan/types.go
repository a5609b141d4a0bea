// Package plan implements the multi-step plan/execute engine: generate
// a structured plan from a task using the planner model,
// let the user review and approve each step, then execute steps
// sequentially with a fresh history per step, a per-step tool-call budget,
// deterministic verification, and a carry-forward summary passed to the
// next step's preamble.
package plan

import "time"

// Status is the plan's lifecycle state machine: Draft -> Reviewing ->
// Ready -> Running -> (Paused | Done | Failed). Running -> Paused happens
// on step failure; Paused -> Running on resume.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReviewing Status = "reviewing"
	StatusReady     Status = "ready"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// StepStatus tracks one step's progress independent of the plan's overall
// Status.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
)

// VerificationKind selects how a step's success is checked after its
// instruction has been executed.
type VerificationKind string

const (
	VerifyNone          VerificationKind = "none"
	VerifyFileChanged    VerificationKind = "file_changed"
	VerifyPatternAbsent  VerificationKind = "pattern_absent"
	VerifyCommandSuccess VerificationKind = "command_success"
	VerifyBuildSuccess   VerificationKind = "build_success"
)

// Verification describes the single check run after a step's instruction
// executes. Path is used by FileChanged; Pattern and Paths by
// PatternAbsent; Command by CommandSuccess. BuildSuccess and None use
// neither field.
type Verification struct {
	Kind    VerificationKind `json:"kind"`
	Path    string           `json:"path,omitempty"`
	Pattern string           `json:"pattern,omitempty"`
	Paths   []string         `json:"paths,omitempty"`
	Command string           `json:"command,omitempty"`
}

// PlanStep is one unit of work within a Plan.
type PlanStep struct {
	Description          string       `json:"description"`
	Instruction          string       `json:"instruction"`
	Files                []string     `json:"files"`
	Verification         Verification `json:"verification"`
	Status               StepStatus   `json:"status"`
	ToolBudget           int          `json:"tool_budget"`
	UserAnnotation       string       `json:"user_annotation,omitempty"`
	CarryForwardSummary  string       `json:"carry_forward_summary,omitempty"`
	Approved             bool         `json:"approved"`
}

// Plan is an ordered sequence of steps generated for one task, persisted
// to disk between generate/review/execute calls. ProjectRoot records the
// workspace the plan was generated against, so a resumed plan can't be
// silently executed from a different directory.
type Plan struct {
	Task         string     `json:"task"`
	Steps        []PlanStep `json:"steps"`
	CurrentIndex int        `json:"current_index"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProjectRoot  string     `json:"project_root"`
}

// ErrPlanGeneration signals that plan generation failed: the symbol scan
// or the planner model call errored, or the output could not be parsed
// into a structured Plan with steps. The caller reports the failure and
// leaves any previously persisted plan untouched.
type ErrPlanGeneration struct {
	Reason string
}

func (e *ErrPlanGeneration) Error() string {
	return "plan generation failed: " + e.Reason
}
