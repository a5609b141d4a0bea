package plan

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"time"
)

const verifyTimeout = 2 * time.Minute

// runVerification checks v against the workspace.
// buildCommand is the profile's configured build_command, used by
// VerifyBuildSuccess; VerifyNone always passes. before is the mtime
// snapshot taken just before the step ran, used by VerifyFileChanged to
// detect an actual modification rather than mere existence.
func runVerification(ctx context.Context, workDir, buildCommand string, v Verification, before map[string]time.Time) (bool, string, error) {
	switch v.Kind {
	case VerifyNone, "":
		return true, "no verification configured", nil
	case VerifyFileChanged:
		return verifyFileChanged(workDir, v.Path, before)
	case VerifyPatternAbsent:
		return verifyPatternAbsent(workDir, v.Pattern, v.Paths)
	case VerifyCommandSuccess:
		return runCommand(ctx, workDir, v.Command)
	case VerifyBuildSuccess:
		if buildCommand == "" {
			return false, "no build_command configured for this profile", nil
		}
		return runCommand(ctx, workDir, buildCommand)
	default:
		return false, "", fmt.Errorf("unknown verification kind %q", v.Kind)
	}
}

// verifyFileChanged passes only if rel exists AND its mtime differs from
// (or it's absent from) the pre-step snapshot — "exists" alone isn't
// enough, since a step targeting a file that already existed and made no
// edits would otherwise report a false pass.
func verifyFileChanged(workDir, rel string, before map[string]time.Time) (bool, string, error) {
	if rel == "" {
		return false, "", fmt.Errorf("file_changed verification missing path")
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, rel)
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Sprintf("%s does not exist", rel), nil
	}

	key := rel
	if filepath.IsAbs(rel) {
		if r, err := filepath.Rel(workDir, path); err == nil {
			key = r
		}
	}
	key = filepath.ToSlash(key)

	if prev, existed := before[key]; existed && prev.Equal(info.ModTime()) {
		return false, fmt.Sprintf("%s exists but was not modified during this step", rel), nil
	}
	return true, fmt.Sprintf("%s changed", rel), nil
}

func verifyPatternAbsent(workDir, pattern string, paths []string) (bool, string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, "", fmt.Errorf("compile pattern: %w", err)
	}
	for _, rel := range paths {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, rel)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue // a file that no longer exists can't contain the pattern
		}
		if re.Match(data) {
			return false, fmt.Sprintf("pattern %q still present in %s", pattern, rel), nil
		}
	}
	return true, fmt.Sprintf("pattern %q absent from %d file(s)", pattern, len(paths)), nil
}

func runCommand(ctx context.Context, workDir, command string) (bool, string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	var c *exec.Cmd
	if runtime.GOOS == "windows" {
		c = exec.CommandContext(cmdCtx, "cmd", "/C", command)
	} else {
		c = exec.CommandContext(cmdCtx, "bash", "-c", command)
	}
	c.Dir = workDir

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	switch {
	case cmdCtx.Err() == context.DeadlineExceeded:
		return false, "command timed out", nil
	case err != nil:
		return false, fmt.Sprintf("exit status: %s\n%s", err, buf.String()), nil
	default:
		return true, "exit 0", nil
	}
}
