package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type readInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Symbols   bool   `json:"symbols"`
}

const maxReadLines = 150

// readFileTool implements read_file: hash-anchored lines, the read cache,
// and an optional compact symbol table in place of full content.
func (r *Registry) readFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[readInput](input)
	if err != nil {
		return "", err
	}
	if params.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	absPath, err := ValidatePath(r.workDir, params.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("NotFound: %s", params.Path)
		}
		return "", fmt.Errorf("Io: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("NotFile: %s is a directory", params.Path)
	}

	if params.Symbols {
		if r.symbolLister == nil {
			return "", fmt.Errorf("symbol index not configured")
		}
		return r.symbolLister(absPath)
	}

	explicitRange := params.StartLine > 0 || params.EndLine > 0

	// Whole-file reads with no explicit range are served from cache when
	// available; a ranged read always goes to disk since the cache stores
	// the whole file, not the requested window's provenance.
	if !explicitRange {
		if entry, ok := r.cache.get(absPath); ok {
			age := time.Since(entry.readAt).Round(time.Second)
			body := formatReadLines(entry.lines, entry.hashes, 1, maxReadLines)
			return fmt.Sprintf("(cached, read %s ago)\n%s", age, body), nil
		}
	}

	lines, err := readAllLines(absPath)
	if err != nil {
		return "", fmt.Errorf("Io: %w", err)
	}
	hashes := make([]string, len(lines))
	for i, l := range lines {
		hashes[i] = lineHash(l)
	}
	r.cache.put(absPath, lines, hashes)

	startLine := params.StartLine
	if startLine <= 0 {
		startLine = 1
	}
	endLine := params.EndLine
	if endLine <= 0 {
		endLine = startLine + maxReadLines - 1
	}

	body := formatReadLines(lines, hashes, startLine, endLine)
	if body == "" {
		return "File is empty.", nil
	}
	if endLine < len(lines) && !explicitRange {
		body += fmt.Sprintf("\n... (file has %d total lines, showing %d-%d. Use start_line/end_line to read more.)",
			len(lines), startLine, endLine)
	}
	return body, nil
}

func formatReadLines(lines, hashes []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	var b strings.Builder
	for i := startLine; i <= endLine; i++ {
		b.WriteString(fmt.Sprintf("%d#%s: %s\n", i, hashes[i-1], lines[i-1]))
	}
	return b.String()
}

func readAllLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
