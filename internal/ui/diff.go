package ui

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContextLines = 3

// PrintDiff prints a colorized line-level diff of the pending change,
// computed with diffmatchpatch (line mode via DiffLinesToChars). Long
// unchanged stretches are elided down to a few lines of context around
// each change.
func (t *Terminal) PrintDiff(path, oldContent, newContent string) {
	fmt.Println(t.c(Bold, fmt.Sprintf("--- %s", path)))
	fmt.Println(t.c(Bold, fmt.Sprintf("+++ %s", path)))

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	for i, d := range diffs {
		lines := splitDiffLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, l := range lines {
				fmt.Println(t.c(Red, "-"+l))
			}
		case diffmatchpatch.DiffInsert:
			for _, l := range lines {
				fmt.Println(t.c(Green, "+"+l))
			}
		case diffmatchpatch.DiffEqual:
			for _, l := range elideContext(lines, i == 0, i == len(diffs)-1) {
				if l == elisionMarker {
					fmt.Println(t.c(Cyan, l))
				} else {
					fmt.Println(t.c(Gray, " "+l))
				}
			}
		}
	}
}

const elisionMarker = "@@ … @@"

// elideContext trims an unchanged block to the lines bordering a change:
// the leading block keeps only its tail, the trailing block only its head,
// and an interior block keeps both ends with a marker between.
func elideContext(lines []string, first, last bool) []string {
	n := diffContextLines
	switch {
	case first && last:
		return nil // whole file unchanged; nothing worth printing
	case first:
		if len(lines) > n {
			return append([]string{elisionMarker}, lines[len(lines)-n:]...)
		}
	case last:
		if len(lines) > n {
			return append(append([]string{}, lines[:n]...), elisionMarker)
		}
	default:
		if len(lines) > 2*n {
			out := append([]string{}, lines[:n]...)
			out = append(out, elisionMarker)
			return append(out, lines[len(lines)-n:]...)
		}
	}
	return lines
}

// splitDiffLines turns one diff segment's text into display lines,
// dropping the trailing newline so it doesn't render as a phantom empty
// line.
func splitDiffLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// PrintFilePreview prints a preview of file contents for the write tool.
func (t *Terminal) PrintFilePreview(path, content string) {
	fmt.Println(t.c(Bold+Green, fmt.Sprintf("New file: %s", path)))
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		fmt.Println(t.c(Gray, fmt.Sprintf("  %3d │ ", i+1)) + t.c(Green, line))
	}
}

// ConfirmAction asks the user for y/n confirmation.
func (t *Terminal) ConfirmAction(prompt string) bool {
	fmt.Print(t.c(Bold+Yellow, prompt+" [y/n] "))
	var response string
	fmt.Scanln(&response)
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
