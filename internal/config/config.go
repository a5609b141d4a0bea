// Package config handles profile-based LLM provider configuration loaded
// from a TOML document at the XDG config dir, plus an .env/XDG
// credential bootstrap for API keys.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// HookSet is the profiles.<name>.hooks table: shell commands run at each
// lifecycle event, keyed by event name.
type HookSet struct {
	OnEdit         []string `toml:"on_edit"`
	OnTaskDone     []string `toml:"on_task_done"`
	OnPlanStepDone []string `toml:"on_plan_step_done"`
	OnSessionStart []string `toml:"on_session_start"`
	OnSessionEnd   []string `toml:"on_session_end"`
}

// MCPServerSpec is one profiles.<name>.mcp_servers[] entry.
type MCPServerSpec struct {
	Name    string            `toml:"name"`
	Command []string          `toml:"command"`
	Env     map[string]string `toml:"env"`
}

// Profile is one profiles.<name> table in the TOML document.
type Profile struct {
	Provider          string          `toml:"provider"`
	Endpoint          string          `toml:"endpoint"`
	Model             string          `toml:"model"`
	PlannerModel      string          `toml:"planner_model"`
	ContextTokens     int             `toml:"context_tokens"`
	APIKey            string          `toml:"api_key"`
	CostPerMTokInput  float64         `toml:"cost_per_mtok_input"`
	CostPerMTokOutput float64         `toml:"cost_per_mtok_output"`
	AutoCommit        bool            `toml:"auto_commit"`
	AutoCommitPrefix  string          `toml:"auto_commit_prefix"`
	GitContext        bool            `toml:"git_context"`
	Hooks             HookSet         `toml:"hooks"`
	HooksDisabled     bool            `toml:"hooks_disabled"`
	MCPServers        []MCPServerSpec `toml:"mcp_servers"`
	BuildCommand      string          `toml:"build_command"`
}

// tomlFile is the decoded shape of the top-level config.toml document.
type tomlFile struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Config holds the fully resolved configuration for one profile: LLM
// provider credentials, model selection, context window, and the ambient
// collaborators (hooks, MCP servers) that profile wires in.
type Config struct {
	ProfileName  string
	Provider     string
	APIKey       string
	Model        string
	PlannerModel string
	MaxTokens    int
	BaseURL      string
	ContextWindow int

	CostPerMTokInput  float64
	CostPerMTokOutput float64
	AutoCommit        bool
	AutoCommitPrefix  string
	GitContext        bool
	Hooks             HookSet
	HooksDisabled     bool
	MCPServers        []MCPServerSpec
	BuildCommand      string
}

// configFileName is the TOML document's filename under ConfigDir().
const configFileName = "config.toml"

// Error marks a user-input configuration failure (unknown profile,
// malformed config.toml) so the CLI can exit with its dedicated status
// code instead of the general-failure one.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Load resolves configuration for the named profile. An empty profile name
// falls back to the document's default_profile, then "default". If no
// config.toml exists yet, Load falls back to a
// provider-name-only bootstrap so a first run still works before `--init`
// has been run; in that mode profileName is treated as a provider name
// ("openai"/"anthropic"), matching the pre-profile CLI's --provider flag.
func Load(profileName string) (*Config, error) {
	loadEnvFile(".env")
	configDir, dirErr := ConfigDir()
	if dirErr == nil {
		loadEnvFile(filepath.Join(configDir, "credentials"))
	}

	if dirErr == nil {
		path := filepath.Join(configDir, configFileName)
		if _, statErr := os.Stat(path); statErr == nil {
			f, err := loadTOMLFile(path)
			if err != nil {
				return nil, err
			}
			return resolveProfile(f, profileName)
		}
	}

	return legacyLoad(profileName)
}

func loadTOMLFile(path string) (*tomlFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tomlFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, errorf("parse %s: %s", path, err)
	}
	return &f, nil
}

func resolveProfile(f *tomlFile, name string) (*Config, error) {
	if name == "" {
		name = f.DefaultProfile
	}
	if name == "" {
		name = "default"
	}
	p, ok := f.Profiles[name]
	if !ok {
		return nil, errorf("unknown profile %q", name)
	}

	provider := p.Provider
	if provider == "" {
		provider = inferProvider(p.Model)
	}

	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = APIKeyForProvider(provider)
	}
	if apiKey == "" {
		var err error
		apiKey, err = promptAPIKeyFor(displayName(provider), envVarFor(provider))
		if err != nil {
			return nil, err
		}
	}

	defBaseURL, defMaxTokens, defContextWindow := ProviderDefaults(provider, p.Model)
	baseURL := p.Endpoint
	if baseURL == "" {
		baseURL = defBaseURL
	}
	contextWindow := p.ContextTokens
	if contextWindow == 0 {
		contextWindow = defContextWindow
	}

	model := p.Model
	if model == "" {
		model = defaultModelFor(provider)
	}

	return &Config{
		ProfileName:       name,
		Provider:          provider,
		APIKey:            apiKey,
		Model:             model,
		PlannerModel:      p.PlannerModel,
		MaxTokens:         defMaxTokens,
		BaseURL:           baseURL,
		ContextWindow:     contextWindow,
		CostPerMTokInput:  p.CostPerMTokInput,
		CostPerMTokOutput: p.CostPerMTokOutput,
		AutoCommit:        p.AutoCommit,
		AutoCommitPrefix:  p.AutoCommitPrefix,
		GitContext:        p.GitContext,
		Hooks:             p.Hooks,
		HooksDisabled:     p.HooksDisabled,
		MCPServers:        p.MCPServers,
		BuildCommand:      p.BuildCommand,
	}, nil
}

// legacyLoad implements the pre-config.toml provider-name-only
// resolution, used until a config.toml has been written via `--init`.
func legacyLoad(provider string) (*Config, error) {
	if provider == "" {
		provider = "openai"
	}
	apiKey := APIKeyForProvider(provider)
	if apiKey == "" {
		var err error
		apiKey, err = promptAPIKeyFor(displayName(provider), envVarFor(provider))
		if err != nil {
			return nil, err
		}
	}
	model := defaultModelFor(provider)
	baseURL, maxTokens, contextWindow := ProviderDefaults(provider, model)
	return &Config{
		ProfileName:   "default",
		Provider:      provider,
		APIKey:        apiKey,
		Model:         model,
		MaxTokens:     maxTokens,
		BaseURL:       baseURL,
		ContextWindow: contextWindow,
	}, nil
}

func inferProvider(model string) string {
	if strings.HasPrefix(model, "claude-") {
		return "anthropic"
	}
	return "openai"
}

func defaultModelFor(provider string) string {
	if provider == "anthropic" {
		return "claude-sonnet-4-5-20250929"
	}
	return "gpt-4o-mini"
}

func displayName(provider string) string {
	if provider == "anthropic" {
		return "Anthropic"
	}
	return "OpenAI"
}

func envVarFor(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// KnownModel represents a curated model option.
type KnownModel struct {
	Provider string
	Model    string
	Label    string
}

// KnownModels returns the list of curated models for the /model menu.
func KnownModels() []KnownModel {
	return []KnownModel{
		{"openai", "gpt-4o-mini", "GPT-4o Mini (OpenAI)"},
		{"openai", "gpt-5.1-codex-mini", "GPT-5.1 Codex Mini (OpenAI)"},
		{"openai", "gpt-5.2-codex", "GPT-5.2 Codex (OpenAI)"},
		{"anthropic", "claude-opus-4-6", "Claude Opus 4.6 (Anthropic)"},
		{"anthropic", "claude-sonnet-4-5-20250929", "Claude Sonnet 4.5 (Anthropic)"},
		{"anthropic", "claude-haiku-4-5-20251001", "Claude Haiku 4.5 (Anthropic)"},
	}
}

// ProviderDefaults returns the base URL, max tokens, and context window for a provider and model.
func ProviderDefaults(provider, model string) (baseURL string, maxTokens int, contextWindow int) {
	switch provider {
	case "anthropic":
		return "https://api.anthropic.com/v1", 16384, 200000
	default:
		return "https://api.openai.com/v1", 16384, openAIContextWindow(model)
	}
}

// openAIContextWindow returns the context window size for an OpenAI model
// based on its name prefix.
func openAIContextWindow(model string) int {
	switch {
	case strings.HasPrefix(model, "gpt-5"):
		return 400000
	case strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4"):
		return 200000
	case strings.HasPrefix(model, "gpt-3.5"):
		return 16000
	default:
		return 128000
	}
}

// APIKeyForProvider returns the API key for the given provider from env/credentials.
// Returns empty string if not found.
func APIKeyForProvider(provider string) string {
	return os.Getenv(envVarFor(provider))
}

// ConfigDir returns the XDG-compliant config directory for Pilot.
// Uses $XDG_CONFIG_HOME/pilot if set, otherwise ~/.config/pilot.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, "pilot"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "pilot"), nil
}

// WriteDefault writes a starter config.toml with one "default" profile to
// ConfigDir(), used by `--init`. Refuses to overwrite an existing file.
func WriteDefault() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	const template = `default_profile = "default"

[profiles.default]
endpoint = "https://api.openai.com/v1"
model = "gpt-4o-mini"
context_tokens = 128000
# api_key = "sk-..."           # or set OPENAI_API_KEY / ANTHROPIC_API_KEY

[profiles.default.hooks]
# on_edit = ["go build ./..."]
`
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// promptAPIKeyFor asks the user for an API key and saves it to the credentials file.
func promptAPIKeyFor(providerName, envVar string) (string, error) {
	fmt.Printf("Enter your %s API key: ", providerName)
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	// Save to credentials file
	configDir, err := ConfigDir()
	if err != nil {
		return key, nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return key, nil
	}

	credPath := filepath.Join(configDir, "credentials")
	// Append to existing credentials rather than overwrite
	f, err := os.OpenFile(credPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return key, nil
	}
	defer f.Close()

	fmt.Fprintf(f, "%s=%s\n", envVar, key)
	fmt.Printf("API key saved to %s\n", credPath)
	return key, nil
}

// loadEnvFile reads a .env file and sets environment variables.
// Lines are KEY=VALUE format. Ignores comments (#) and blank lines.
// Does not override variables already set in the environment.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file not found is fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Strip surrounding quotes
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
