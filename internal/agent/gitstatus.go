package agent

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// gitStatusTimeout bounds the subprocess spawned for the preamble's git
// status snapshot. Full git integration lives outside the agent core;
// this is only the optional read-only snapshot included in the preamble.
const gitStatusTimeout = 3 * time.Second

// gitStatusSnapshot returns `git status --short` for workDir, or "" if the
// directory isn't a git repo, the command fails, or there's nothing to
// report. Failures are swallowed: the snapshot is optional, never a reason
// to fail the request it's assembled for.
func gitStatusSnapshot(workDir string) string {
	ctx, cancel := context.WithTimeout(context.Background(), gitStatusTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "status", "--short")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\n")
}
