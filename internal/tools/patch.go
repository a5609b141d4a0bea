package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

type patchInput struct {
	Path   string `json:"path"`
	Patch  string `json:"patch"`
	Anchor string `json:"anchor"`
}

// hunk is one parsed "@@ -a,b +c,d @@" block. startLine is the 1-based
// pre-image line number from the header. A hunk with context/deletion
// lines uses it only as a hint and is located in the live file by
// matching those lines with the same fuzzy cascade edit_file uses, so
// patch_file and edit_file fail/succeed consistently on the same kind of
// drift; an insert-only hunk has no such lines and is inserted at
// startLine.
type hunk struct {
	startLine  int
	oldText    string
	newText    string
	insertOnly bool
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parseUnifiedDiff extracts hunks from a unified-diff string. File-header
// lines ("diff --git", "index", "---", "+++") and "\ No newline" markers
// are skipped; anything else outside a hunk is an error.
func parseUnifiedDiff(patch string) ([]hunk, error) {
	var hunks []hunk
	var oldLines, newLines []string
	start := 0
	inHunk := false

	flush := func() {
		if !inHunk {
			return
		}
		h := hunk{
			startLine:  start,
			oldText:    strings.Join(oldLines, "\n"),
			newText:    strings.Join(newLines, "\n"),
			insertOnly: len(oldLines) == 0,
		}
		hunks = append(hunks, h)
		oldLines, newLines = nil, nil
		inHunk = false
	}

	for _, line := range strings.Split(patch, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			inHunk = true
			fmt.Sscanf(m[1], "%d", &start)
			continue
		}
		if strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index ") ||
			strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") ||
			strings.HasPrefix(line, `\`) {
			continue
		}
		if !inHunk {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("unexpected line outside any @@ hunk: %q", line)
		}
		if line == "" {
			// a bare empty line inside a hunk is an empty context line
			oldLines = append(oldLines, "")
			newLines = append(newLines, "")
			continue
		}
		switch line[0] {
		case ' ':
			oldLines = append(oldLines, line[1:])
			newLines = append(newLines, line[1:])
		case '-':
			oldLines = append(oldLines, line[1:])
		case '+':
			newLines = append(newLines, line[1:])
		default:
			return nil, fmt.Errorf("invalid hunk line (must start with ' ', '-', or '+'): %q", line)
		}
	}
	flush()
	return hunks, nil
}

// patchFileTool implements patch_file: unified-diff hunks located via the
// fuzzy cascade, applied atomically — either every hunk locates and
// applies, or the file is left untouched.
func (r *Registry) patchFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[patchInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	if params.Patch == "" {
		return "", fmt.Errorf("patch is required")
	}

	absPath, err := ValidatePath(r.workDir, params.Path)
	if err != nil {
		return "", err
	}

	contentBytes, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	content := string(contentBytes)

	hunks, err := parseUnifiedDiff(params.Patch)
	if err != nil {
		return "", fmt.Errorf("parse patch: %w", err)
	}
	if len(hunks) == 0 {
		return "", fmt.Errorf("patch contains no hunks")
	}

	if params.Anchor != "" {
		lines, _ := splitLinesWithOffsets(content)
		line := hunks[0].startLine
		if line >= 1 && line <= len(lines) {
			if got := lineHash(lines[line-1]); got != params.Anchor {
				return "", fmt.Errorf("StaleAnchor at line %d: expected anchor %s, file now has %s. Re-read the file and retry with the current anchor", line, params.Anchor, got)
			}
		}
	}

	working := content
	var matched, failed []string
	for i, h := range hunks {
		if h.insertOnly {
			working = insertAtLine(working, h.startLine-1, h.newText+"\n")
			matched = append(matched, fmt.Sprintf("hunk %d (insert at line %d)", i+1, h.startLine))
			continue
		}

		_, spans := findMatches(working, h.oldText)
		switch len(spans) {
		case 1:
			working = working[:spans[0].Start] + h.newText + working[spans[0].End:]
			matched = append(matched, fmt.Sprintf("hunk %d (line %d)", i+1, spans[0].StartLine))
		case 0:
			failed = append(failed, fmt.Sprintf("hunk %d: context not found (hinted near line %d)", i+1, h.startLine))
		default:
			failed = append(failed, fmt.Sprintf("hunk %d: ambiguous, %d candidate locations", i+1, len(spans)))
		}
	}

	if len(failed) > 0 {
		return "", fmt.Errorf("HunkNotFound: %d of %d hunks failed to apply atomically; no changes were made.\nMatched: %s\nFailed: %s",
			len(failed), len(hunks), strings.Join(matched, "; "), strings.Join(failed, "; "))
	}

	newContent := working
	return "", &NeedsConfirmation{
		Tool:       "patch_file",
		Path:       params.Path,
		Preview:    content,
		NewContent: newContent,
		Execute: func() (string, error) {
			info, err := os.Stat(absPath)
			if err != nil {
				return "", fmt.Errorf("stat file: %w", err)
			}
			if err := AtomicWrite(absPath, []byte(newContent), info.Mode()); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}
			r.cache.invalidate(absPath)
			return fmt.Sprintf("Successfully applied %d hunk(s) to %s", len(hunks), params.Path), nil
		},
	}
}

// insertAtLine inserts text before the given 0-indexed line number.
func insertAtLine(content string, line int, text string) string {
	_, offsets := splitLinesWithOffsets(content)
	if line < 0 {
		line = 0
	}
	if line >= len(offsets) {
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		return content + text
	}
	return content[:offsets[line]] + text + content[offsets[line]:]
}
