// Package mechanical implements the --mechanical grep-and-replace mode
// of the CLI: a regex find/replace applied directly across the
// workspace, bypassing the model entirely for changes simple enough not
// to need one. Walks the workspace with its own skip-dir and binary-file
// checks and uses diffmatchpatch for the dry-run preview.
package mechanical

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileChange describes one file's before/after content for a single
// pattern/replacement pass.
type FileChange struct {
	Path    string
	Before  string
	After   string
	Matches int
}

// Run walks workDir applying re/replacement to every non-binary file whose
// name matches glob (empty glob matches everything). When dryRun is true,
// no file is written — FileChange.After is computed but not persisted, and
// the caller is expected to render Diff for review.
func Run(workDir string, re *regexp.Regexp, replacement, glob string, dryRun bool) ([]FileChange, error) {
	var changes []FileChange

	err := filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if glob != "" {
			if matched, _ := filepath.Match(glob, d.Name()); !matched {
				return nil
			}
		}
		if isBinaryFile(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		before := string(data)
		matches := re.FindAllStringIndex(before, -1)
		if len(matches) == 0 {
			return nil
		}
		after := re.ReplaceAllString(before, replacement)

		rel, _ := filepath.Rel(workDir, path)
		changes = append(changes, FileChange{
			Path:    filepath.ToSlash(rel),
			Before:  before,
			After:   after,
			Matches: len(matches),
		})

		if !dryRun {
			info, statErr := os.Stat(path)
			mode := os.FileMode(0644)
			if statErr == nil {
				mode = info.Mode()
			}
			if err := os.WriteFile(path, []byte(after), mode); err != nil {
				return fmt.Errorf("write %s: %w", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Diff renders a human-readable preview of one FileChange using the
// diffmatchpatch library (character mode), the same library ui.PrintDiff
// uses for the edit_file/patch_file confirmation previews.
func Diff(c FileChange) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(c.Before, c.After, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// Summary renders a one-line-per-file report of how many matches were
// found/replaced, for --dry-run output.
func Summary(changes []FileChange) string {
	var sb strings.Builder
	total := 0
	for _, c := range changes {
		fmt.Fprintf(&sb, "%s: %d match(es)\n", c.Path, c.Matches)
		total += c.Matches
	}
	fmt.Fprintf(&sb, "\n%d file(s), %d total match(es)\n", len(changes), total)
	return sb.String()
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", ".pilot":
		return true
	default:
		return false
	}
}

func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

// ScanLines is a small helper for callers that want to confirm a file is
// text before handing it to Run (e.g. a CLI preview of which files would
// be touched), reusing the same bufio.Scanner idiom as tools.searchTool.
func ScanLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
