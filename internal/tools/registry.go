// Package tools provides the tool registry and implementations for file operations,
// shell execution, and codebase exploration, with path sandboxing for security.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

// ToolFunc is the signature for tool implementations.
type ToolFunc func(ctx context.Context, input json.RawMessage) (string, error)

type toolEntry struct {
	name string
	fn   ToolFunc
	def  llm.ToolDef
}

// Registry holds all available tools and dispatches execution.
type Registry struct {
	tools        []toolEntry
	workDir      string
	exploreFunc  ExploreFunc
	cache        *readCache
	symbolLister SymbolListerFunc
}

// SymbolListerFunc renders the compact symbol table for a file, used by
// read_file when called with symbols=true. Injected from internal/symbols
// to avoid a dependency cycle.
type SymbolListerFunc func(absPath string) (string, error)

// SetSymbolLister wires the symbol index into read_file's symbols=true path.
func (r *Registry) SetSymbolLister(fn SymbolListerFunc) {
	r.symbolLister = fn
}

// NewRegistry creates a registry and registers all built-in tools.
func NewRegistry(workDir string) *Registry {
	r := &Registry{workDir: workDir, cache: newReadCache()}
	r.registerBuiltins()
	return r
}

func (r *Registry) register(name, description string, schema json.RawMessage, fn ToolFunc) {
	r.tools = append(r.tools, toolEntry{
		name: name,
		fn:   fn,
		def: llm.ToolDef{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        name,
				Description: description,
				Parameters:  schema,
			},
		},
	})
}

// Execute runs a tool by name with the given input. "recall" is expected to
// be intercepted by the agent loop before reaching here.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	for _, t := range r.tools {
		if t.name == name {
			return t.fn(ctx, input)
		}
	}
	return "", fmt.Errorf("unknown tool: %s", name)
}

// IsReadOnly returns true for tools that don't modify the filesystem.
func (r *Registry) IsReadOnly(name string) bool {
	switch name {
	case "search", "list_files", "read_file", "explore", "recall":
		return true
	default:
		return false
	}
}

// Definitions returns tool definitions in stable registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.def
	}
	return defs
}

// registerReadOnlyTools registers the read-only tools (search, list_files,
// read_file). Shared by both the full registry and the read-only registry
// used by the explore sub-agent.
func (r *Registry) registerReadOnlyTools() {
	r.register("search",
		`A ripgrep-style regex search over the workspace. Supports RE2 regex syntax (e.g., "log.*Error", "func\\s+\\w+"). Note: RE2 does not support lookaheads or lookbehinds. Literal braces need escaping (use "interface\\{\\}" to find "interface{}" in Go code). Filter files by base name with glob (e.g., "*.go", "*_test.go"; brace alternatives such as "*.{ts,tsx}" are not supported). Returns at most 50 matches as path:line:content. Zero matches is reported as "No instances found." — use that as a verification signal, not an error.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "RE2 regular expression to search for"
				},
				"path": {
					"type": "string",
					"description": "Directory to search in (default: working directory)"
				},
				"glob": {
					"type": "string",
					"description": "Glob pattern to filter filenames (e.g., '*.go', '*_test.go'; no brace alternatives)"
				}
			},
			"required": ["pattern"]
		}`),
		r.searchTool,
	)

	r.register("list_files",
		`List directory contents with file/directory indicators and sizes. Pass glob (e.g. "**/*.go") instead of path to match files recursively across the whole workspace by name pattern.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "Directory path to list shallowly (default: working directory)"
				},
				"glob": {
					"type": "string",
					"description": "Glob pattern to match files recursively (e.g., '**/*.go'); overrides path"
				}
			}
		}`),
		r.listFilesTool,
	)

	r.register("read_file",
		`Read file contents. Each line is prefixed "{line_no}#{hash4}: " — the hash4 is a content anchor required by edit_file/patch_file to detect the file has shifted since you read it. Trimmed to 150 lines unless start_line/end_line is given. Pass symbols=true to get a compact symbol table instead of full content. Reads are cached for this session — a second whole-file read (no start_line/end_line) of the same file returns the cached body annotated with its age instead of re-reading. Always use this instead of bash cat/head/tail.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "File path to read"
				},
				"start_line": {
					"type": "integer",
					"description": "First line to read (1-indexed, default: 1)"
				},
				"end_line": {
					"type": "integer",
					"description": "Last line to read (1-indexed, inclusive)"
				},
				"symbols": {
					"type": "boolean",
					"description": "Return a compact symbol table instead of full content"
				}
			},
			"required": ["path"]
		}`),
		r.readFileTool,
	)
}

func (r *Registry) registerBuiltins() {
	r.registerReadOnlyTools()

	r.register("write_file",
		`Create or overwrite a file with the given content. Creates parent directories if needed. Fails with "Exists" if the file already exists unless overwrite=true. User confirmation required. ALWAYS prefer editing existing files over writing new ones — use edit_file or patch_file to modify existing files. Never proactively create documentation files (*.md) or README files unless explicitly requested.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "File path to write"
				},
				"content": {
					"type": "string",
					"description": "Content to write to the file"
				},
				"overwrite": {
					"type": "boolean",
					"description": "Required true to replace an existing file"
				}
			},
			"required": ["path", "content"]
		}`),
		r.writeFileTool,
	)

	r.register("edit_file",
		`Edit a file by replacing an exact string match. Tries exact, then CRLF-normalized, then per-line trimmed, then per-line trailing-trimmed matching, in that order. If a tier matches more than once, or not at all, the error includes ±15 lines of context instead of the whole file — use it to narrow old_str. Pass anchor (a hash4 from a prior read_file) to detect the file shifted since you last read it; a mismatch fails fast with StaleAnchor instead of editing the wrong place. Always prefer this over write_file for existing files.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "File path to edit"
				},
				"old_str": {
					"type": "string",
					"description": "Exact string to find (must appear exactly once)"
				},
				"new_str": {
					"type": "string",
					"description": "Replacement string"
				},
				"anchor": {
					"type": "string",
					"description": "hash4 anchor from read_file's output for the first line of old_str, to detect staleness"
				}
			},
			"required": ["path", "old_str", "new_str"]
		}`),
		r.editFileTool,
	)

	r.register("patch_file",
		`Apply a unified-diff patch (one or more @@ -a,b +c,d @@ hunks) to a file. Each hunk's context lines are located using the same fuzzy matching as edit_file; line numbers in the hunk header are only hints. Application is atomic — if any hunk's context can't be located unambiguously, no hunks are applied and the error lists which hunks matched and which didn't. Prefer this over edit_file when changing several non-adjacent regions of one file in a single call.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {
					"type": "string",
					"description": "File path to patch"
				},
				"patch": {
					"type": "string",
					"description": "Unified diff text containing one or more hunks"
				},
				"anchor": {
					"type": "string",
					"description": "hash4 anchor for the first hunk's context start line, to detect staleness"
				}
			},
			"required": ["path", "patch"]
		}`),
		r.patchFileTool,
	)

	r.register("bash",
		`Execute a shell command in the working directory. Use for terminal operations like git, builds, tests, and other system commands. Do NOT use bash for file operations (reading, writing, editing, searching) — use the dedicated tools instead. Specifically, do not use cat, head, tail, sed, awk, find, grep, or echo when a dedicated tool exists.

Before executing commands that create new directories or files, first verify the parent directory exists using list_files. Always quote file paths containing spaces. Use && to chain sequential dependent commands. Prefer absolute paths and avoid cd when possible.

All commands require user confirmation. Default timeout: 30s, max: 120s. Output is capped at 200 lines, with up to 20 lines matching error:/FAILED/panic/warning: retained even when other output is dropped.

Git safety: Never force-push, reset --hard, use --no-verify, or amend unless the user explicitly asks. Never use interactive flags (-i). Prefer staging specific files over "git add -A". Only commit when explicitly requested by the user.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {
					"type": "string",
					"description": "Shell command to execute"
				},
				"timeout_ms": {
					"type": "integer",
					"description": "Timeout in milliseconds (default: 30000, max: 120000)"
				}
			},
			"required": ["command"]
		}`),
		r.bashTool,
	)

	r.register("recall",
		`Fetch the full body of a previous tool result that the budget engine compressed down to a one-line summary in your context. Pass tool_call_id if you have it, or tool_name to get that tool's most recent result. Use this instead of re-running read_file/search when you just need to see a result you already produced.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"tool_call_id": {
					"type": "string",
					"description": "The tool_call_id of the original call, if known"
				},
				"tool_name": {
					"type": "string",
					"description": "Resolve to the most recent result of this tool name"
				}
			}
		}`),
		r.recallTool,
	)

	r.register("explore",
		`Explore the codebase to answer broad questions by delegating to a focused sub-agent. The sub-agent has its own context and read-only tools (search, list_files, read_file). Use this for questions like "how does authentication work?", "what's the project structure?", or "find all API endpoints". Do NOT use this for direct tasks like editing files or running commands — only for research and exploration.`,
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"task": {
					"type": "string",
					"description": "What to explore or research in the codebase"
				}
			},
			"required": ["task"]
		}`),
		r.exploreTool,
	)
}
