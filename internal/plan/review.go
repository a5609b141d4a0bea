package plan

import (
	"fmt"
	"time"
)

// Annotate appends a user note to a step's instruction as
// "User note: ...". Moves the plan into Reviewing if it was still a
// Draft.
func (p *Plan) Annotate(stepIndex int, note string) error {
	if err := p.checkStepIndex(stepIndex); err != nil {
		return err
	}
	if p.Status == StatusDraft {
		p.Status = StatusReviewing
	}
	step := &p.Steps[stepIndex]
	step.UserAnnotation = note
	step.Instruction = step.Instruction + "\nUser note: " + note
	p.UpdatedAt = time.Now()
	return nil
}

// Approve marks a single step approved. A plan can only move to Ready
// once every step is approved.
func (p *Plan) Approve(stepIndex int) error {
	if err := p.checkStepIndex(stepIndex); err != nil {
		return err
	}
	if p.Status == StatusDraft {
		p.Status = StatusReviewing
	}
	p.Steps[stepIndex].Approved = true
	p.UpdatedAt = time.Now()
	if p.allApproved() {
		p.Status = StatusReady
	}
	return nil
}

// Reorder rearranges steps according to order, a permutation of
// [0, len(Steps)). Resets approval on every step since their relative
// position (and therefore carry-forward dependencies) has changed.
func (p *Plan) Reorder(order []int) error {
	if len(order) != len(p.Steps) {
		return fmt.Errorf("reorder: expected %d indices, got %d", len(p.Steps), len(order))
	}
	seen := make(map[int]bool, len(order))
	next := make([]PlanStep, len(p.Steps))
	for i, idx := range order {
		if idx < 0 || idx >= len(p.Steps) || seen[idx] {
			return fmt.Errorf("reorder: invalid or duplicate index %d", idx)
		}
		seen[idx] = true
		next[i] = p.Steps[idx]
		next[i].Approved = false
	}
	p.Steps = next
	if p.Status == StatusReady {
		p.Status = StatusReviewing
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (p *Plan) allApproved() bool {
	for _, s := range p.Steps {
		if !s.Approved {
			return false
		}
	}
	return true
}

func (p *Plan) checkStepIndex(i int) error {
	if i < 0 || i >= len(p.Steps) {
		return fmt.Errorf("step index %d out of range (plan has %d steps)", i, len(p.Steps))
	}
	return nil
}
