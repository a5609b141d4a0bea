package tools

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"
)

type bashInput struct {
	Command   string `json:"command"`
	TimeoutMs int    `json:"timeout_ms"`
}

const (
	defaultTimeoutMs = 30000
	maxTimeoutMs     = 120000
	maxOutputLines   = 200
	maxRetainedLines = 20
)

var bashErrorLinePattern = regexp.MustCompile(`(?i)error:|FAILED|panic|warning:`)

// readOnlyBashCommands lists the programs quick mode's restricted bash
// accepts as a command's first word.
var readOnlyBashCommands = map[string]bool{
	"ls": true, "cat": true, "head": true, "tail": true, "wc": true,
	"grep": true, "rg": true, "find": true, "pwd": true, "file": true,
	"stat": true, "du": true, "df": true, "which": true, "env": true,
}

var readOnlyGitSubcommands = map[string]bool{
	"status": true, "log": true, "diff": true, "show": true,
	"branch": true, "blame": true, "remote": true,
}

// IsReadOnlyCommand reports whether command is a single allowlisted
// read-only program invocation. Shell metacharacters disqualify the
// command outright — a pipe, redirect, substitution, or chain can smuggle
// a write through an otherwise-allowlisted first word.
func IsReadOnlyCommand(command string) bool {
	if strings.ContainsAny(command, "|&;><`$\n") {
		return false
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "git":
		return len(fields) >= 2 && readOnlyGitSubcommands[fields[1]]
	case "go":
		return len(fields) >= 2 && (fields[1] == "version" || fields[1] == "env" || fields[1] == "list")
	default:
		return readOnlyBashCommands[fields[0]]
	}
}

// SpawnError signals the command could not be started at all.
type SpawnError struct{ Err error }

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn error: %s", e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

func (r *Registry) bashTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[bashInput](input)
	if err != nil {
		return "", err
	}
	if params.Command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeoutMs := params.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}
	if timeoutMs > maxTimeoutMs {
		timeoutMs = maxTimeoutMs
	}

	return "", &NeedsConfirmation{
		Tool:    "bash",
		Path:    params.Command,
		Preview: params.Command,
		Execute: func() (string, error) {
			timeoutDur := time.Duration(timeoutMs) * time.Millisecond
			execCtx, cancel := context.WithTimeout(ctx, timeoutDur)
			defer cancel()

			var cmd *exec.Cmd
			if runtime.GOOS == "windows" {
				cmd = exec.CommandContext(execCtx, "cmd", "/C", params.Command)
			} else {
				cmd = exec.CommandContext(execCtx, "bash", "-c", params.Command)
			}
			cmd.Dir = r.workDir

			var buf bytes.Buffer
			cmd.Stdout = &buf
			cmd.Stderr = &buf

			runErr := cmd.Run()

			if runErr != nil {
				if _, ok := runErr.(*exec.Error); ok {
					return "", &SpawnError{Err: runErr}
				}
			}

			output, truncated := truncateOutputLines(buf.String(), maxOutputLines, maxRetainedLines)

			var result string
			switch {
			case execCtx.Err() == context.DeadlineExceeded:
				result = fmt.Sprintf("Command timed out after %dms.\n%s", timeoutMs, output)
			case runErr != nil:
				result = fmt.Sprintf("Exit status: %s\n%s", runErr, output)
			default:
				result = output
				if result == "" {
					result = "(no output)"
				}
			}

			if truncated {
				result += "\n[output truncated]"
			}

			return result, nil
		},
	}
}

// truncateOutputLines caps output at maxLines, but retains up to maxRetained
// lines matching an error/failure/panic/warning pattern even when other
// lines are dropped to make the cap, so a build failure's diagnostic line
// survives truncation of its surrounding noisy output.
func truncateOutputLines(output string, maxLines, maxRetained int) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	var all []string
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if len(all) <= maxLines {
		return output, false
	}

	kept := all[:maxLines]
	var retained []string
	for _, line := range all[maxLines:] {
		if len(retained) >= maxRetained {
			break
		}
		if bashErrorLinePattern.MatchString(line) {
			retained = append(retained, line)
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(kept, "\n"))
	if len(retained) > 0 {
		b.WriteString(fmt.Sprintf("\n... (%d lines omitted; retaining %d matching error/warning lines below)\n", len(all)-maxLines, len(retained)))
		b.WriteString(strings.Join(retained, "\n"))
	}
	return b.String(), true
}
