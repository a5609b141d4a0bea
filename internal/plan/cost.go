package plan

import (
	"os"
	"path/filepath"
)

// EstimateCost computes the pre-execution token estimate: per step,
// 500 + sum(file_bytes/4) + len(instruction)/4, with the
// total scaled by 1.3 to account for tool-call overhead the planner can't
// see in advance. Unresolved file hints (no matching file on disk)
// contribute zero bytes rather than erroring — cost estimation is a
// rough budget signal, not a precondition for generation.
func EstimateCost(workDir string, p *Plan) (perStep []int, total int) {
	perStep = make([]int, len(p.Steps))
	sum := 0
	for i, step := range p.Steps {
		cost := 500 + len(step.Instruction)/4
		for _, f := range step.Files {
			cost += fileBytes(workDir, f) / 4
		}
		perStep[i] = cost
		sum += cost
	}
	return perStep, int(float64(sum) * 1.3)
}

func fileBytes(workDir, rel string) int {
	path := rel
	if !filepath.IsAbs(rel) {
		path = filepath.Join(workDir, rel)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return int(info.Size())
}
