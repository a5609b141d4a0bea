package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")

	content := `# This is a comment
OPENAI_API_KEY=sk-test123

SOME_VAR="quoted_value"
SINGLE_QUOTED='single'
EMPTY=
`
	os.WriteFile(envPath, []byte(content), 0644)

	// Clear env vars first
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("SOME_VAR")
	os.Unsetenv("SINGLE_QUOTED")
	os.Unsetenv("EMPTY")

	loadEnvFile(envPath)

	tests := []struct {
		key  string
		want string
	}{
		{"OPENAI_API_KEY", "sk-test123"},
		{"SOME_VAR", "quoted_value"},
		{"SINGLE_QUOTED", "single"},
		{"EMPTY", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := os.Getenv(tt.key)
			if got != tt.want {
				t.Errorf("expected %q=%q, got %q", tt.key, tt.want, got)
			}
		})
	}

	// Clean up
	for _, tt := range tests {
		os.Unsetenv(tt.key)
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")

	os.WriteFile(envPath, []byte("MY_VAR=from_file\n"), 0644)
	os.Setenv("MY_VAR", "from_env")
	defer os.Unsetenv("MY_VAR")

	loadEnvFile(envPath)

	if got := os.Getenv("MY_VAR"); got != "from_env" {
		t.Errorf("expected from_env, got %s", got)
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	// Should not panic on missing file
	loadEnvFile("/nonexistent/path/.env")
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	original := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	dir := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", dir)

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := filepath.Join(dir, "pilot")
	if configDir != expected {
		t.Errorf("expected %s, got %s", expected, configDir)
	}
}

func TestConfigDirDefault(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	os.Unsetenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "pilot")
	if configDir != expected {
		t.Errorf("expected %s, got %s", expected, configDir)
	}
}

func TestResolveProfileFromTOML(t *testing.T) {
	doc := `default_profile = "local"

[profiles.local]
endpoint = "http://localhost:8080/v1"
model = "qwen2.5-coder-14b"
context_tokens = 32768
api_key = "sk-local"
git_context = true
build_command = "go build ./..."

[profiles.local.hooks]
on_edit = ["gofmt -l ."]

[[profiles.local.mcp_servers]]
name = "fs"
command = ["mcp-fs", "--root", "."]
`
	var f tomlFile
	if _, err := toml.Decode(doc, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}

	cfg, err := resolveProfile(&f, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ProfileName != "local" {
		t.Errorf("expected default_profile to apply, got %q", cfg.ProfileName)
	}
	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("unexpected endpoint: %q", cfg.BaseURL)
	}
	if cfg.ContextWindow != 32768 {
		t.Errorf("unexpected context window: %d", cfg.ContextWindow)
	}
	if !cfg.GitContext {
		t.Error("expected git_context to carry through")
	}
	if len(cfg.Hooks.OnEdit) != 1 || cfg.Hooks.OnEdit[0] != "gofmt -l ." {
		t.Errorf("unexpected on_edit hooks: %v", cfg.Hooks.OnEdit)
	}
	if len(cfg.MCPServers) != 1 || cfg.MCPServers[0].Name != "fs" {
		t.Errorf("unexpected mcp_servers: %v", cfg.MCPServers)
	}
}

func TestUnknownProfileIsConfigError(t *testing.T) {
	f := &tomlFile{Profiles: map[string]Profile{"default": {Model: "gpt-4o-mini", APIKey: "sk-x"}}}
	_, err := resolveProfile(f, "nope")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *config.Error, got %T", err)
	}
}
