package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lowkaihon/pilot/internal/agent"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/symbols"
	"github.com/lowkaihon/pilot/internal/tools"
)

// ErrPlanNotReady is returned by Execute when the plan has steps that
// haven't been individually approved yet; the user must approve each
// step before any of them run.
var ErrPlanNotReady = fmt.Errorf("plan is not Ready: every step must be approved before execution")

// StepHook lets a caller observe progress without Execute depending on any
// particular UI; each is invoked synchronously around the named event.
type StepHook struct {
	OnStepStart  func(index int, step PlanStep)
	OnStepDone   func(index int, step PlanStep, passed bool, detail string)
}

// Config bundles the collaborators Execute needs to run each step through
// a real agent loop.
type Config struct {
	Client        llm.LLMClient
	Registry      *tools.Registry
	WorkDir       string
	ContextWindow int
	BuildCommand  string // profile's configured build command, for VerifyBuildSuccess
	GitContext    bool   // whether each step's agent includes a git status snapshot
	UI            agent.UI
}

// Execute runs every Pending step of p in order:
//  1. build a fresh history isolated from prior steps
//  2. invoke the agent loop with the step's tool_budget as a hard cap
//  3. run the step's verification
//  4. on pass, compute and store a carry-forward summary, advance
//     CurrentIndex, and persist
//  5. on fail, mark the step and plan Failed/Paused, persist, and stop
//
// Execute saves the plan after every step: as Paused after a failed step,
// and with status Running after a passed one, so a plan left on disk by a
// crash mid-run reads Running.
func Execute(ctx context.Context, p *Plan, cfg Config, hooks StepHook) error {
	if p.Status != StatusReady && p.Status != StatusPaused {
		return ErrPlanNotReady
	}
	if p.ProjectRoot != "" && cfg.WorkDir != "" && p.ProjectRoot != cfg.WorkDir {
		return fmt.Errorf("plan was generated for %s, refusing to execute it in %s", p.ProjectRoot, cfg.WorkDir)
	}
	p.Status = StatusRunning
	p.UpdatedAt = time.Now()

	for i := p.CurrentIndex; i < len(p.Steps); i++ {
		step := &p.Steps[i]
		if step.Status == StepPassed {
			continue
		}
		step.Status = StepRunning
		p.UpdatedAt = time.Now()
		if hooks.OnStepStart != nil {
			hooks.OnStepStart(i, *step)
		}

		before := snapshotWorkspace(cfg.WorkDir)

		stepAgent := agent.New(cfg.Client, cfg.Registry, cfg.WorkDir, cfg.ContextWindow)
		stepAgent.SetGitContext(cfg.GitContext)
		// Project conventions are already loaded by agent.New's own
		// preamble; pin the step's resolved files and carry forward every
		// prior step's summary.
		for _, f := range step.Files {
			_ = stepAgent.AttachFile(f) // best effort: unresolved symbol hints simply don't attach
		}
		stepAgent.AppendSystemPreamble(stepPreamble(p.Steps[:i]))
		stepAgent.SetToolBudget(step.ToolBudget)

		runErr := stepAgent.Run(ctx, step.Instruction, cfg.UI)
		if runErr != nil && runErr != agent.ErrToolBudgetExceeded {
			step.Status = StepFailed
			p.Status = StatusPaused
			p.UpdatedAt = time.Now()
			if hooks.OnStepDone != nil {
				hooks.OnStepDone(i, *step, false, runErr.Error())
			}
			Save(cfg.WorkDir, p)
			return fmt.Errorf("step %d: %w", i+1, runErr)
		}

		passed, detail, err := runVerification(ctx, cfg.WorkDir, cfg.BuildCommand, step.Verification, before)
		if err != nil {
			passed, detail = false, err.Error()
		}

		if !passed {
			step.Status = StepFailed
			p.Status = StatusPaused
			p.UpdatedAt = time.Now()
			if hooks.OnStepDone != nil {
				hooks.OnStepDone(i, *step, false, detail)
			}
			Save(cfg.WorkDir, p)
			return fmt.Errorf("step %d verification failed: %s", i+1, detail)
		}

		after := snapshotWorkspace(cfg.WorkDir)
		step.CarryForwardSummary = carryForwardSummary(cfg.WorkDir, before, after)
		step.Status = StepPassed
		p.CurrentIndex = i + 1
		p.UpdatedAt = time.Now()
		if hooks.OnStepDone != nil {
			hooks.OnStepDone(i, *step, true, detail)
		}
		if _, err := Save(cfg.WorkDir, p); err != nil {
			return fmt.Errorf("persist plan after step %d: %w", i+1, err)
		}
	}

	p.Status = StatusDone
	p.UpdatedAt = time.Now()
	_, err := Save(cfg.WorkDir, p)
	return err
}

// stepPreamble composes the fresh-history preamble for one step: the
// concatenation of every prior step's carry-forward summary. Project
// conventions and the step's attached files
// are handled by the step's own agent.Agent (its own dynamicPreamble and
// AttachFile calls), not here.
func stepPreamble(priorSteps []PlanStep) string {
	var b strings.Builder
	var summaries []string
	for _, s := range priorSteps {
		if s.CarryForwardSummary != "" {
			summaries = append(summaries, s.CarryForwardSummary)
		}
	}
	if len(summaries) > 0 {
		b.WriteString("# Prior plan steps completed so far\n\n")
		b.WriteString(strings.Join(summaries, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// snapshotWorkspace records each tracked file's modification time, keyed
// by path relative to workDir, for diffing against a post-step snapshot.
func snapshotWorkspace(workDir string) map[string]time.Time {
	snap := make(map[string]time.Time)
	filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != workDir && tools.ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			rel = path
		}
		snap[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})
	return snap
}

// carryForwardSummary diffs before/after snapshots to find paths created or
// modified during the step, extracts each one's top-level symbol names via
// internal/symbols, and composes the deterministic
// "modified <path> [<sym1>, <sym2>]; ..." line.
func carryForwardSummary(workDir string, before, after map[string]time.Time) string {
	var changed []string
	for rel, mtime := range after {
		if prev, ok := before[rel]; !ok || !prev.Equal(mtime) {
			changed = append(changed, rel)
		}
	}
	sort.Strings(changed)
	if len(changed) == 0 {
		return ""
	}

	parts := make([]string, len(changed))
	for i, rel := range changed {
		abs := filepath.Join(workDir, rel)
		names := symbols.ScanSymbolNames(abs, rel)
		if len(names) == 0 {
			parts[i] = fmt.Sprintf("modified %s", rel)
		} else {
			parts[i] = fmt.Sprintf("modified %s [%s]", rel, strings.Join(names, ", "))
		}
	}
	return strings.Join(parts, "; ") + ";"
}
