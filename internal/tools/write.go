package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type writeInput struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Overwrite bool   `json:"overwrite"`
}

// NeedsConfirmation is an error type that signals the agent should confirm with the user.
type NeedsConfirmation struct {
	Tool       string
	Path       string
	Preview    string // old content (empty for new files)
	NewContent string // new content (for diff display)
	Execute    func() (string, error)
}

func (e *NeedsConfirmation) Error() string {
	return fmt.Sprintf("%s requires confirmation for %s", e.Tool, e.Path)
}

func (r *Registry) writeFileTool(ctx context.Context, input json.RawMessage) (string, error) {
	params, err := parseInput[writeInput](input)
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

	oldContent := ""
	if data, err := os.ReadFile(absPath); err == nil {
		oldContent = string(data)
		if !params.Overwrite {
			return "", fmt.Errorf("Exists: %s already exists; pass overwrite=true to replace it", params.Path)
		}
	}

	return "", &NeedsConfirmation{
		Tool:       "write_file",
		Path:       params.Path,
		Preview:    oldContent,
		NewContent: params.Content,
		Execute: func() (string, error) {
			dir := filepath.Dir(absPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", fmt.Errorf("create directory: %w", err)
			}

			if err := AtomicWrite(absPath, []byte(params.Content), 0644); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}
			r.cache.invalidate(absPath)

			return fmt.Sprintf("Successfully wrote %s (%d bytes)", params.Path, len(params.Content)), nil
		},
	}
}
