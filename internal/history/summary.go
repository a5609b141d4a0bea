package history

import (
	"fmt"

	"github.com/rivo/uniseg"
)

const maxSummaryBodyChars = 120

// Summarize produces a tool result's display summary: a one-line stand-in
// shown to the model once the budget engine compresses the full body away.
// The summary always names the tool and gives an early-abort-able hint of
// the body's shape, and it always mentions recall so the model knows how
// to get the full body back.
func Summarize(toolName, fullBody string) string {
	body, truncated := truncateGraphemes(fullBody, maxSummaryBodyChars)
	if truncated {
		return fmt.Sprintf("[%s result compressed, %d bytes — %s... use recall to see the full body]", toolName, len(fullBody), body)
	}
	return fmt.Sprintf("[%s result compressed, %d bytes — %s — use recall to see the full body]", toolName, len(fullBody), body)
}

// truncateGraphemes cuts s after max grapheme clusters, never splitting a
// multi-byte scalar.
func truncateGraphemes(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	gr := uniseg.NewGraphemes(s)
	count := 0
	end := 0
	for gr.Next() {
		count++
		_, end = gr.Positions()
		if count >= max {
			break
		}
	}
	if end >= len(s) {
		return s, false
	}
	return s[:end], true
}
