package tools

import "strings"

// matchTier identifies which tier of the fuzzy-match cascade produced a
// candidate, used only for diagnostics in error messages.
type matchTier int

const (
	tierExact matchTier = iota
	tierCRLF
	tierTrim
	tierTrimEnd
)

func (t matchTier) String() string {
	switch t {
	case tierExact:
		return "exact"
	case tierCRLF:
		return "CRLF-normalized"
	case tierTrim:
		return "trimmed"
	case tierTrimEnd:
		return "trailing-trimmed"
	default:
		return "unknown"
	}
}

// matchSpan is a candidate location of old_str within content, as a byte
// range [Start, End) plus the 1-indexed line number it starts on.
type matchSpan struct {
	Start, End int
	StartLine  int
}

// findMatches runs the four-tier fuzzy cascade and returns
// the first tier that produces at least one candidate.
func findMatches(content, oldStr string) (matchTier, []matchSpan) {
	if spans := exactMatches(content, oldStr); len(spans) > 0 {
		return tierExact, spans
	}
	if spans := crlfMatches(content, oldStr); len(spans) > 0 {
		return tierCRLF, spans
	}
	if spans := lineMatches(content, oldStr, strings.TrimSpace); len(spans) > 0 {
		return tierTrim, spans
	}
	if spans := lineMatches(content, oldStr, trimEndOnly); len(spans) > 0 {
		return tierTrimEnd, spans
	}
	return tierExact, nil
}

func trimEndOnly(s string) string {
	return strings.TrimRight(s, " \t\r")
}

func exactMatches(content, oldStr string) []matchSpan {
	var spans []matchSpan
	start := 0
	for {
		idx := strings.Index(content[start:], oldStr)
		if idx < 0 {
			break
		}
		abs := start + idx
		spans = append(spans, matchSpan{Start: abs, End: abs + len(oldStr), StartLine: lineNumberAt(content, abs)})
		start = abs + 1
		if start >= len(content) {
			break
		}
	}
	return spans
}

// crlfMatches normalizes \r\n to \n in both content and oldStr, matches in
// the normalized text, then maps offsets back to the original content.
func crlfMatches(content, oldStr string) []matchSpan {
	normContent, offsetMap := normalizeCRLFWithMap(content)
	normOld := strings.ReplaceAll(oldStr, "\r\n", "\n")
	if normOld == oldStr {
		return nil // no CRLF involved; exact tier already covers this case
	}

	var spans []matchSpan
	start := 0
	for {
		idx := strings.Index(normContent[start:], normOld)
		if idx < 0 {
			break
		}
		absNorm := start + idx
		origStart := offsetMap[absNorm]
		var origEnd int
		if absNorm+len(normOld) < len(offsetMap) {
			origEnd = offsetMap[absNorm+len(normOld)]
		} else {
			origEnd = len(content)
		}
		spans = append(spans, matchSpan{Start: origStart, End: origEnd, StartLine: lineNumberAt(content, origStart)})
		start = absNorm + 1
		if start >= len(normContent) {
			break
		}
	}
	return spans
}

// normalizeCRLFWithMap strips \r before \n and returns a map from each
// normalized-string byte offset to the corresponding original offset.
func normalizeCRLFWithMap(content string) (string, []int) {
	var b strings.Builder
	offsets := make([]int, 0, len(content))
	for i := 0; i < len(content); i++ {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			continue
		}
		b.WriteByte(content[i])
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(content))
	return b.String(), offsets
}

// lineMatches slides a window the height of oldStr's line count over
// content's lines, comparing each line under the given normalization.
func lineMatches(content, oldStr string, norm func(string) string) []matchSpan {
	contentLines, offsets := splitLinesWithOffsets(content)
	oldLines := strings.Split(oldStr, "\n")
	if len(oldLines) == 0 || len(oldLines) > len(contentLines) {
		return nil
	}

	normOld := make([]string, len(oldLines))
	for i, l := range oldLines {
		normOld[i] = norm(l)
	}

	var spans []matchSpan
	for i := 0; i+len(oldLines) <= len(contentLines); i++ {
		match := true
		for j, nl := range normOld {
			if norm(contentLines[i+j]) != nl {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		last := i + len(oldLines) - 1
		start := offsets[i]
		end := offsets[last] + len(contentLines[last])
		spans = append(spans, matchSpan{Start: start, End: end, StartLine: i + 1})
	}
	return spans
}

func splitLinesWithOffsets(content string) ([]string, []int) {
	lines := strings.Split(content, "\n")
	offsets := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		offsets[i] = pos
		pos += len(l) + 1 // +1 for the newline separating this line from the next
	}
	return lines, offsets
}

func lineNumberAt(content string, byteOffset int) int {
	return strings.Count(content[:byteOffset], "\n") + 1
}

// contextWindow returns ±n lines of context around centerLine (1-indexed),
// formatted with hash anchors, for Ambiguous/NotFound diagnostics.
func contextWindow(content string, centerLine, n int) string {
	lines, _ := splitLinesWithOffsets(content)
	start := centerLine - n
	if start < 1 {
		start = 1
	}
	end := centerLine + n
	if end > len(lines) {
		end = len(lines)
	}
	hashes := make([]string, len(lines))
	for i, l := range lines {
		hashes[i] = lineHash(l)
	}
	return formatReadLines(lines, hashes, start, end)
}
