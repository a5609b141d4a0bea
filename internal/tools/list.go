package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type listInput struct {
	Path string `json:"path"`
	Glob string `json:"glob"`
}

const maxListResults = 100

// listFilesTool implements list_files: a shallow directory listing, or —
// when glob is set — a recursive pattern match across the whole workspace.
func (r *Registry) listFilesTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[listInput](input)
	if err != nil {
		return "", err
	}

	if params.Glob != "" {
		return r.globListing(ctx, params.Glob)
	}
	return r.shallowListing(params.Path)
}

func (r *Registry) shallowListing(path string) (string, error) {
	dir := r.workDir
	if path != "" {
		var err error
		dir, err = ValidatePath(r.workDir, path)
		if err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read directory: %w", err)
	}

	var result strings.Builder
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if entry.IsDir() {
			result.WriteString(fmt.Sprintf("  %s/\n", entry.Name()))
		} else {
			result.WriteString(fmt.Sprintf("  %-40s %s\n", entry.Name(), formatSize(info.Size())))
		}
	}

	if result.Len() == 0 {
		return "Directory is empty.", nil
	}
	return result.String(), nil
}

func (r *Registry) globListing(ctx context.Context, pattern string) (string, error) {
	var matches []string

	err := filepath.WalkDir(r.workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if d.Type()&os.ModeSymlink != 0 {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(r.workDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		matched, err := matchGlob(pattern, rel)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if matched {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		return "No files matched the pattern.", nil
	}

	var result strings.Builder
	limit := len(matches)
	truncated := false
	if limit > maxListResults {
		limit = maxListResults
		truncated = true
	}
	for _, m := range matches[:limit] {
		result.WriteString(m)
		result.WriteByte('\n')
	}
	if truncated {
		result.WriteString(fmt.Sprintf("\n... and %d more matches", len(matches)-maxListResults))
	}
	return result.String(), nil
}

// matchGlob performs glob matching supporting ** for recursive directory matching.
func matchGlob(pattern, name string) (bool, error) {
	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, name)
	}
	return filepath.Match(pattern, name)
}

// matchDoublestar handles ** glob patterns.
func matchDoublestar(pattern, name string) (bool, error) {
	parts := strings.Split(pattern, "**")

	if len(parts) == 2 {
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")

		if prefix == "" && suffix == "" {
			return true, nil
		}
		if prefix == "" {
			segments := strings.Split(name, "/")
			for i := range segments {
				subpath := strings.Join(segments[i:], "/")
				if matched, _ := filepath.Match(suffix, subpath); matched {
					return true, nil
				}
				if matched, _ := filepath.Match(suffix, segments[len(segments)-1]); matched {
					return true, nil
				}
			}
			return false, nil
		}
		if suffix == "" {
			return strings.HasPrefix(name, prefix+"/") || name == prefix, nil
		}
		if !strings.HasPrefix(name, prefix+"/") && name != prefix {
			return false, nil
		}
		rest := strings.TrimPrefix(name, prefix+"/")
		return matchDoublestar("**/"+suffix, rest)
	}

	return filepath.Match(pattern, name)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
