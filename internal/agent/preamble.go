package agent

import "github.com/lowkaihon/pilot/internal/budget"

// conventionsRecency and gitStatusRecency are high, fixed Recency values
// so AssemblePreamble only drops conventions/git status ahead of a pinned
// attachment in pathological single-item-budget cases; attachments use
// their attach-order Seq so the least-recently-attached file is trimmed
// first.
const (
	conventionsRecency = 1 << 30
	gitStatusRecency    = 1<<30 - 1
)

// dynamicPreamble assembles the per-request preamble content that isn't
// static across the session's lifetime: project conventions, the optional
// git status snapshot, and pinned attachments. It runs through
// budget.AssemblePreamble so the block stays within its own sub-budget,
// trimming the least-recently-attached items first.
func (a *Agent) dynamicPreamble() string {
	var items []budget.PreambleItem

	if conv := LoadConventions(a.workDir); conv != "" {
		items = append(items, budget.PreambleItem{
			Label:   "# Project conventions",
			Body:    conv,
			Recency: conventionsRecency,
		})
	}
	if a.gitContext {
		if status := gitStatusSnapshot(a.workDir); status != "" {
			items = append(items, budget.PreambleItem{
				Label:   "# Git status",
				Body:    status,
				Recency: gitStatusRecency,
			})
		}
	}
	for _, att := range a.attachments {
		items = append(items, budget.PreambleItem{
			Label:   "# Attached file: " + att.Path,
			Body:    att.Content,
			Recency: att.Seq,
		})
	}

	if len(items) == 0 {
		return ""
	}
	return budget.AssemblePreamble(items, budget.PreambleBudget(a.contextWindow))
}
