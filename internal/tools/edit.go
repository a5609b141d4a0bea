package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type editInput struct {
	Path   string `json:"path"`
	OldStr string `json:"old_str"`
	NewStr string `json:"new_str"`
	Anchor string `json:"anchor"`
}

func (r *Registry) editFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[editInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	if params.OldStr == "" {
		return "", fmt.Errorf("old_str is required")
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

	if params.Anchor != "" {
		lines, _ := splitLinesWithOffsets(content)
		_, candidates := findMatches(content, params.OldStr)
		if len(candidates) > 0 {
			line := candidates[0].StartLine
			if line >= 1 && line <= len(lines) {
				if got := lineHash(lines[line-1]); got != params.Anchor {
					return "", fmt.Errorf("StaleAnchor at line %d: expected anchor %s, file now has %s. Re-read the file and retry with the current anchor", line, params.Anchor, got)
				}
			}
		}
	}

	tier, spans := findMatches(content, params.OldStr)
	if len(spans) == 0 {
		closest := closestLineGuess(content, params.OldStr)
		return "", fmt.Errorf("no match found for old_str in %s (tried exact, CRLF-normalized, trimmed, and trailing-trim matches).\n%s\nRe-read the file and retry with an updated anchor", params.Path, contextWindow(content, closest, 15))
	}
	if len(spans) > 1 {
		var ctxs string
		for i, s := range spans {
			ctxs += fmt.Sprintf("\nCandidate %d (line %d):\n%s", i+1, s.StartLine, contextWindow(content, s.StartLine, 15))
		}
		return "", fmt.Errorf("Ambiguous: old_str matches %d times in %s (%s tier).%s", len(spans), params.Path, tier, ctxs)
	}

	span := spans[0]
	newContent := content[:span.Start] + params.NewStr + content[span.End:]

	return "", &NeedsConfirmation{
		Tool:       "edit_file",
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

			return fmt.Sprintf("Successfully edited %s", params.Path), nil
		},
	}
}

// closestLineGuess finds the content line most similar to old_str's first
// line, for the ±15-line context dump on a total match failure.
func closestLineGuess(content, oldStr string) int {
	lines, _ := splitLinesWithOffsets(content)
	firstOld := oldStr
	if idx := indexByte(oldStr, '\n'); idx >= 0 {
		firstOld = oldStr[:idx]
	}
	best, bestScore := 1, -1
	for i, l := range lines {
		score := commonPrefixLen(l, firstOld)
		if score > bestScore {
			bestScore = score
			best = i + 1
		}
	}
	return best
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
