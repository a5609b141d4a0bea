package agent

import (
	"os"
	"path/filepath"
)

// conventionsCandidates lists the recognized locations for the
// project conventions file, in priority order: the workspace-local
// persisted-state path first, then the two root-level fallbacks other
// coding agents already put convention text in.
var conventionsCandidates = []string{
	filepath.Join(".pilot", "conventions.md"),
	"AGENTS.md",
	"CLAUDE.md",
}

// LoadConventions returns the contents of the first conventions file found
// under workDir, or "" if none exists. Exported for the plan engine, which
// injects the same text into each step's isolated preamble.
func LoadConventions(workDir string) string {
	for _, rel := range conventionsCandidates {
		data, err := os.ReadFile(filepath.Join(workDir, rel))
		if err == nil && len(data) > 0 {
			return string(data)
		}
	}
	return ""
}
