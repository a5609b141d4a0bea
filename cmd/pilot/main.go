// Pilot is a terminal-based AI coding agent. By default it runs an
// interactive REPL; flags select one-shot modes (--quick, --mechanical,
// --mcp, --update, --init) instead.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lowkaihon/pilot/internal/agent"
	"github.com/lowkaihon/pilot/internal/config"
	"github.com/lowkaihon/pilot/internal/hooks"
	"github.com/lowkaihon/pilot/internal/log"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
	"github.com/lowkaihon/pilot/internal/mcp"
	"github.com/lowkaihon/pilot/internal/mcpserver"
	"github.com/lowkaihon/pilot/internal/mechanical"
	"github.com/lowkaihon/pilot/internal/plan"
	"github.com/lowkaihon/pilot/internal/selfupdate"
	"github.com/lowkaihon/pilot/internal/tools"
	"github.com/lowkaihon/pilot/internal/ui"
)

var version = "dev"

func getVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// flags holds every --flag value; cobra binds directly into it.
var flags struct {
	profile     string
	verbose     bool
	dryRun      bool
	initConfig  bool
	quick       string
	mechanical  bool
	pattern     string
	replacement string
	glob        string
	update      bool
	mcpServe    bool
	completions string
}

func main() {
	root := &cobra.Command{
		Use:           "pilot",
		Short:         "Terminal-based AI coding agent",
		Version:       getVersion(),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          run,
	}

	root.PersistentFlags().StringVar(&flags.profile, "profile", "", "config profile to use (see ~/.config/pilot/config.toml)")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "enable debug logging to stderr")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "plan/preview without dispatching tools (/plan and --mechanical)")
	root.Flags().BoolVar(&flags.initConfig, "init", false, "write a starter config.toml and exit")
	root.Flags().StringVar(&flags.quick, "quick", "", "run a single restricted edit/search/bash round-trip and exit")
	root.Flags().BoolVar(&flags.mechanical, "mechanical", false, "regex find/replace across the workspace, bypassing the model")
	root.Flags().StringVar(&flags.pattern, "pattern", "", "regex pattern for --mechanical")
	root.Flags().StringVar(&flags.replacement, "replace", "", "replacement text for --mechanical")
	root.Flags().StringVar(&flags.glob, "glob", "", "filename glob for --mechanical (default: all files)")
	root.Flags().BoolVar(&flags.update, "update", false, "self-update to the latest release and exit")
	root.Flags().BoolVar(&flags.mcpServe, "mcp", false, "expose the native tool registry as an MCP stdio server")
	root.Flags().StringVar(&flags.completions, "completions", "", "print shell completion script (bash|zsh|fish|powershell)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		if err == context.Canceled {
			os.Exit(130)
		}
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log.SetVerbose(flags.verbose)

	if flags.completions != "" {
		return printCompletions(cmd, flags.completions)
	}
	if flags.initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	if flags.mechanical {
		return runMechanical(workDir)
	}

	cfg, err := config.Load(flags.profile)
	if err != nil {
		return err
	}

	if flags.update {
		return runSelfUpdate()
	}

	if flags.mcpServe {
		registry := tools.NewRegistry(workDir)
		return mcpserver.Serve(cmd.Context(), registry, "pilot", getVersion())
	}

	client := newClient(cfg.Provider, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.BaseURL)
	registry := tools.NewRegistry(workDir)
	ag := agent.New(client, registry, workDir, cfg.ContextWindow)
	ag.SetGitContext(cfg.GitContext)
	wireAmbientCollaborators(ag, registry, cfg, workDir)

	if flags.quick != "" {
		out, err := ag.RunQuick(context.Background(), flags.quick, ui.NewTerminal())
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	return runREPL(ag, cfg, registry, client, workDir)
}

// wireAmbientCollaborators connects the profile's configured MCP servers
// and lifecycle hooks into the agent.
func wireAmbientCollaborators(ag *agent.Agent, registry *tools.Registry, cfg *config.Config, workDir string) {
	if len(cfg.MCPServers) > 0 {
		mgr := mcp.NewManager()
		var servers []mcp.ServerConfig
		for _, s := range cfg.MCPServers {
			servers = append(servers, mcp.ServerConfig{Name: s.Name, Command: s.Command, Env: s.Env})
		}
		mgr.Start(context.Background(), servers)
		ag.SetMCPManager(mgr)
	}

	hookCommands := map[hooks.Event][]string{
		hooks.OnEdit:         cfg.Hooks.OnEdit,
		hooks.OnTaskDone:     cfg.Hooks.OnTaskDone,
		hooks.OnPlanStepDone: cfg.Hooks.OnPlanStepDone,
		hooks.OnSessionStart: cfg.Hooks.OnSessionStart,
		hooks.OnSessionEnd:   cfg.Hooks.OnSessionEnd,
	}
	runner := hooks.NewRunner(workDir, hookCommands, cfg.HooksDisabled)
	ag.SetHookRunner(runner)
	runner.Run(context.Background(), hooks.OnSessionStart)
}

func runMechanical(workDir string) error {
	if flags.pattern == "" {
		return fmt.Errorf("--mechanical requires --pattern")
	}
	re, err := regexp.Compile(flags.pattern)
	if err != nil {
		return fmt.Errorf("invalid --pattern regex: %w", err)
	}
	changes, err := mechanical.Run(workDir, re, flags.replacement, flags.glob, flags.dryRun)
	if err != nil {
		return err
	}
	if flags.dryRun {
		for _, c := range changes {
			fmt.Println(mechanical.Diff(c))
		}
	}
	fmt.Print(mechanical.Summary(changes))
	return nil
}

// defaultUpdateRepo is the GitHub "owner/name" self-update checks by
// default; PILOT_UPDATE_REPO overrides it for forks/private mirrors.
const defaultUpdateRepo = "lowkaihon/pilot"

func runSelfUpdate() error {
	repo := os.Getenv("PILOT_UPDATE_REPO")
	if repo == "" {
		repo = defaultUpdateRepo
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	release, err := selfupdate.Fetch(ctx, repo)
	if err != nil {
		return fmt.Errorf("check for update: %w", err)
	}

	if release.Version == getVersion() {
		fmt.Printf("Already on the latest release (%s).\n", release.Version)
		return nil
	}

	exe, err := selfupdate.CurrentExecutable()
	if err != nil {
		return fmt.Errorf("locate running binary: %w", err)
	}

	fmt.Printf("Updating %s -> %s...\n", getVersion(), release.Version)
	if err := selfupdate.Apply(exe, release); err != nil {
		return fmt.Errorf("self-update: %w", err)
	}

	fmt.Printf("Updated to %s.\n", release.Version)
	return nil
}

func printCompletions(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	switch shell {
	case "bash":
		return root.GenBashCompletion(os.Stdout)
	case "zsh":
		return root.GenZshCompletion(os.Stdout)
	case "fish":
		return root.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return fmt.Errorf("unknown shell %q (want bash, zsh, fish, or powershell)", shell)
	}
}

// runREPL runs the interactive conversation loop, unchanged from pilot's
// original bufio-based interface.
func runREPL(ag *agent.Agent, cfg *config.Config, registry *tools.Registry, client llm.LLMClient, workDir string) error {
	rootCtx := context.Background()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	currentModel := cfg.Model
	currentProvider := cfg.Provider

	term := ui.NewTerminal()
	term.PrintBanner(currentModel, workDir, getVersion())

	oldSessionsDir := filepath.Join(workDir, ".pilot", "sessions")
	if info, err := os.Stat(oldSessionsDir); err == nil && info.IsDir() {
		term.PrintWarning("Session storage has moved to ~/.pilot/projects/<hash>/sessions/")
		term.PrintWarning(fmt.Sprintf("Old sessions at %s can be safely deleted.", oldSessionsDir))
		fmt.Println()
	}

	reader := bufio.NewReader(os.Stdin)

	var mu sync.Mutex
	var lastInterrupt time.Time

	go func() {
		for range sigCh {
			mu.Lock()
			now := time.Now()
			doubleTap := now.Sub(lastInterrupt) < 2*time.Second
			lastInterrupt = now
			mu.Unlock()

			// Agent.Cancel is a no-op when nothing is running, so we can
			// always call it; then exit on a second interrupt within two
			// seconds, or reprint the prompt otherwise.
			ag.Cancel()
			if doubleTap {
				fmt.Println("\nExiting.")
				os.Exit(0)
			}
			fmt.Println()
			term.PrintPrompt()
		}
	}()

	running := true
	for running {
		fmt.Print(term.Prompt())
		input, err := readInput(reader, term)
		if err != nil {
			break
		}

		if input == "" {
			continue
		}

		switch input {
		case "/help":
			term.PrintHelp()
			if sessDir, err := agent.GlobalSessionsDir(workDir); err == nil {
				fmt.Printf("  Sessions stored at: %s\n\n", sessDir)
			}
		case "/model":
			handleModelSwitch(reader, term, ag, &currentModel, &currentProvider)
		case "/quit":
			running = false
		case "/resume":
			handleResume(reader, term, ag, workDir)
		case "/compact":
			if err := ag.Compact(rootCtx, term); err != nil {
				term.PrintError(err)
			} else if err := ag.SaveSession(); err != nil {
				term.PrintWarning(fmt.Sprintf("Session save failed: %s", err))
			}
		case "/clear":
			ag.Clear(term)
		case "/context":
			s := ag.ContextUsage()
			term.PrintContextUsage(s.TotalTokens, s.ContextWindow, s.Threshold,
				s.MessageCount, s.SystemTokens, s.ToolDefTokens,
				s.MessageTokens, s.ActualTokens)
			if cfg.CostPerMTokInput > 0 || cfg.CostPerMTokOutput > 0 {
				pTok, cTok := ag.SessionUsage()
				cost := float64(pTok)/1e6*cfg.CostPerMTokInput + float64(cTok)/1e6*cfg.CostPerMTokOutput
				fmt.Printf("  Session cost: $%.4f (%d input / %d output tokens)\n\n", cost, pTok, cTok)
			}
		case "/rewind":
			handleRewind(reader, term, ag, rootCtx)
		case "/plan":
			handlePlan(reader, term, rootCtx, cfg, registry, client, workDir)
		case "/attach":
			handleAttach(reader, term, ag)
		case "/detach":
			handleDetach(reader, term, ag)
		default:
			ag.CreateCheckpoint(input)

			err := ag.Run(rootCtx, input, term)

			if err != nil {
				if err == context.Canceled {
					fmt.Println("Operation cancelled.")
					fmt.Println()
				} else {
					term.PrintError(err)
				}
			}

			if saveErr := ag.SaveSession(); saveErr != nil {
				term.PrintWarning(fmt.Sprintf("Session save failed: %s", saveErr))
			}
		}
	}
	return nil
}

// handlePlan drives the generate -> review -> execute plan flow from
// the REPL: one planner-model call, interactive per-step approval, then a
// fresh-history agent run per approved step.
func handlePlan(reader *bufio.Reader, term *ui.Terminal, ctx context.Context, cfg *config.Config, registry *tools.Registry, executorClient llm.LLMClient, workDir string) {
	// A plan left Paused by a failed step can be picked back up before
	// generating a fresh one.
	if latest, err := plan.LatestPath(workDir); err == nil {
		if prev, err := plan.Load(latest); err == nil && prev.Status == plan.StatusPaused {
			fmt.Printf("Found a paused plan (%q, stopped at step %d/%d). Resume it? [y/N]: ", prev.Task, prev.CurrentIndex+1, len(prev.Steps))
			ans, rdErr := reader.ReadString('\n')
			if rdErr == nil && strings.TrimSpace(ans) == "y" {
				if prev.CurrentIndex < len(prev.Steps) && prev.Steps[prev.CurrentIndex].Status == plan.StepFailed {
					prev.Steps[prev.CurrentIndex].Status = plan.StepPending
				}
				runPlanExecution(ctx, term, prev, cfg, registry, executorClient, workDir)
				return
			}
		}
	}

	fmt.Print("Task for the plan: ")
	task, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return
	}

	plannerClient := executorClient
	if cfg.PlannerModel != "" && cfg.PlannerModel != cfg.Model {
		baseURL, maxTokens, _ := config.ProviderDefaults(cfg.Provider, cfg.PlannerModel)
		plannerClient = newClient(cfg.Provider, cfg.APIKey, cfg.PlannerModel, maxTokens, baseURL)
	}

	fmt.Println("Generating plan...")
	p, err := plan.Generate(ctx, plannerClient, workDir, task)
	if err != nil {
		term.PrintError(err)
		return
	}
	if _, err := plan.Save(workDir, p); err != nil {
		term.PrintWarning(fmt.Sprintf("plan save failed: %s", err))
	}

	if !reviewPlan(reader, term, p, workDir) {
		fmt.Println("Plan cancelled.")
		return
	}
	plan.Save(workDir, p)

	if flags.dryRun {
		fmt.Println("Dry run: plan reviewed and saved, no steps executed.")
		return
	}

	runPlanExecution(ctx, term, p, cfg, registry, executorClient, workDir)
}

// runPlanExecution drives plan.Execute with the REPL's progress rendering,
// shared by the fresh-plan and resume-paused-plan paths.
func runPlanExecution(ctx context.Context, term *ui.Terminal, p *plan.Plan, cfg *config.Config, registry *tools.Registry, executorClient llm.LLMClient, workDir string) {
	execCfg := plan.Config{
		Client:        executorClient,
		Registry:      registry,
		WorkDir:       workDir,
		ContextWindow: cfg.ContextWindow,
		BuildCommand:  cfg.BuildCommand,
		GitContext:    cfg.GitContext,
		UI:            term,
	}
	hooks := plan.StepHook{
		OnStepStart: func(i int, s plan.PlanStep) {
			fmt.Printf("\n-- step %d/%d: %s --\n", i+1, len(p.Steps), s.Description)
		},
		OnStepDone: func(i int, s plan.PlanStep, passed bool, detail string) {
			term.PrintPlanStepResult(i, s.Description, passed, detail)
		},
	}

	if err := plan.Execute(ctx, p, execCfg, hooks); err != nil {
		term.PrintError(err)
		fmt.Println("Plan paused; run /plan again to resume from the failing step, or re-plan.")
		return
	}
	fmt.Println("Plan complete.")
}

// reviewPlan walks the user through plan review:
// annotate, approve each step individually, and either confirm execution
// once every step is approved or cancel outright.
func reviewPlan(reader *bufio.Reader, term *ui.Terminal, p *plan.Plan, workDir string) bool {
	for {
		views := make([]ui.PlanStepView, len(p.Steps))
		for i, s := range p.Steps {
			views[i] = ui.PlanStepView{
				Description:  s.Description,
				Instruction:  s.Instruction,
				Files:        s.Files,
				Verification: string(s.Verification.Kind),
				Approved:     s.Approved,
			}
		}
		_, total := plan.EstimateCost(workDir, p)
		term.PrintPlanSteps(p.Task, views, total)

		fmt.Print("approve <n> | note <n> <text> | approve all | go | cancel: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		line = strings.TrimSpace(line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "cancel":
			return false
		case "go":
			if p.Status != plan.StatusReady {
				term.PrintWarning("every step must be approved before running.")
				continue
			}
			return true
		case "approve":
			if len(fields) >= 2 && fields[1] == "all" {
				for i := range p.Steps {
					p.Approve(i)
				}
				continue
			}
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 || n > len(p.Steps) {
				term.PrintWarning("invalid step number.")
				continue
			}
			if err := p.Approve(n - 1); err != nil {
				term.PrintWarning(err.Error())
			}
		case "note":
			if len(fields) < 3 {
				term.PrintWarning("usage: note <n> <text>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 || n > len(p.Steps) {
				term.PrintWarning("invalid step number.")
				continue
			}
			if err := p.Annotate(n-1, strings.Join(fields[2:], " ")); err != nil {
				term.PrintWarning(err.Error())
			}
		default:
			term.PrintWarning("unrecognized command.")
		}
	}
}

func newClient(provider, apiKey, model string, maxTokens int, baseURL string) llm.LLMClient {
	client, err := llm.New(provider, apiKey, model, maxTokens, baseURL)
	if err != nil {
		// New only errors on an unrecognized provider, which config.Load
		// never produces; fall back to OpenAI defensively.
		return llm.NewOpenAIClient(apiKey, model, maxTokens, baseURL)
	}
	return client
}

// readInput reads one line from the reader, then collects any additional
// pasted lines that arrived in the same paste event. This handles multi-line
// paste by checking both the bufio buffer and the OS stdin buffer.
func readInput(reader *bufio.Reader, term *ui.Terminal) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	lines := []string{strings.TrimRight(line, "\r\n")}

	for reader.Buffered() > 0 || ui.StdinHasData() {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func handleModelSwitch(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent, currentModel, currentProvider *string) {
	models := config.KnownModels()
	options := make([]ui.ModelOption, len(models))
	for i, m := range models {
		options[i] = ui.ModelOption{
			Label:   m.Label,
			Current: m.Model == *currentModel,
		}
	}
	term.PrintModelMenu(options)

	fmt.Print("Choice: ")
	choice, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return
	}

	var selectedModel, selectedProvider string

	n, err := strconv.Atoi(choice)
	if err == nil {
		if n == 0 {
			term.PrintProviderPrompt(*currentProvider)
			fmt.Print("Provider (Enter for current): ")
			pChoice, pErr := reader.ReadString('\n')
			if pErr != nil {
				return
			}
			switch strings.TrimSpace(pChoice) {
			case "1":
				selectedProvider = "openai"
			case "2":
				selectedProvider = "anthropic"
			case "":
				selectedProvider = *currentProvider
			default:
				term.PrintWarning("Invalid choice.")
				return
			}

			fmt.Print("Model name: ")
			custom, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			custom = strings.TrimSpace(custom)
			if custom == "" {
				return
			}
			selectedModel = custom
		} else if n >= 1 && n <= len(models) {
			selectedModel = models[n-1].Model
			selectedProvider = models[n-1].Provider
		} else {
			term.PrintWarning("Invalid choice.")
			return
		}
	} else {
		term.PrintWarning("Invalid choice.")
		return
	}

	if selectedModel == *currentModel {
		term.PrintWarning(fmt.Sprintf("Already using %s.", selectedModel))
		return
	}

	apiKey := config.APIKeyForProvider(selectedProvider)
	if apiKey == "" {
		term.PrintWarning(fmt.Sprintf("No API key found for %s. Set the environment variable or add it to credentials.", selectedProvider))
		return
	}

	baseURL, maxTokens, contextWindow := config.ProviderDefaults(selectedProvider, selectedModel)
	client := newClient(selectedProvider, apiKey, selectedModel, maxTokens, baseURL)
	ag.SetClient(client, contextWindow)
	*currentModel = selectedModel
	*currentProvider = selectedProvider

	term.PrintModelSwitch(selectedModel)
}

func handleResume(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent, workDir string) {
	sessions, err := agent.ListSessions(workDir, 10)
	if err != nil {
		term.PrintError(fmt.Errorf("list sessions: %w", err))
		return
	}
	if len(sessions) == 0 {
		term.PrintWarning("No saved sessions found.")
		return
	}

	items := make([]ui.SessionListItem, len(sessions))
	for i, s := range sessions {
		items[i] = ui.SessionListItem{
			ID:       s.ID,
			Updated:  s.UpdatedAt,
			Preview:  s.Preview,
			MsgCount: s.MsgCount,
		}
	}
	term.PrintSessionList(items)

	fmt.Print("Choice: ")
	choice, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(sessions) {
		term.PrintWarning("Invalid choice.")
		return
	}

	selected := sessions[n-1]
	if err := ag.ResumeSession(selected.ID); err != nil {
		term.PrintError(fmt.Errorf("resume session: %w", err))
		return
	}

	term.PrintConversationHistory(ag.MessageHistory())
	term.PrintSessionResumed(selected.MsgCount, selected.Preview)
}

// handleAttach pins a file's content to every subsequent model call's
// preamble.
func handleAttach(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent) {
	fmt.Print("Path to attach: ")
	path, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if err := ag.AttachFile(path); err != nil {
		term.PrintError(err)
		return
	}
	term.PrintAttachments(attachmentPaths(ag))
}

// handleDetach unpins a previously attached file.
func handleDetach(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent) {
	attached := ag.Attachments()
	if len(attached) == 0 {
		term.PrintWarning("No files attached.")
		return
	}
	term.PrintAttachments(attachmentPaths(ag))

	fmt.Print("Path to detach: ")
	path, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if !ag.DetachFile(path) {
		term.PrintWarning(fmt.Sprintf("%s is not attached.", path))
		return
	}
	term.PrintAttachments(attachmentPaths(ag))
}

func attachmentPaths(ag *agent.Agent) []string {
	attached := ag.Attachments()
	paths := make([]string, len(attached))
	for i, a := range attached {
		paths[i] = a.Path
	}
	return paths
}

func handleRewind(reader *bufio.Reader, term *ui.Terminal, ag *agent.Agent, ctx context.Context) {
	items := ag.Checkpoints()
	if len(items) == 0 {
		term.PrintWarning("No checkpoints available. Checkpoints are created at the start of each turn.")
		return
	}

	uiItems := make([]ui.CheckpointListItem, len(items))
	for i, item := range items {
		uiItems[i] = ui.CheckpointListItem{
			Turn:      item.Turn,
			Timestamp: item.Timestamp,
			Preview:   item.Preview,
		}
	}
	term.PrintCheckpointList(uiItems)

	fmt.Print("Checkpoint number: ")
	choice, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return
	}

	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(items) {
		term.PrintWarning("Invalid checkpoint number.")
		return
	}

	term.PrintRewindActions()

	fmt.Print("Action: ")
	action, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	action = strings.TrimSpace(action)

	switch action {
	case "1":
		if err := ag.RewindAll(n); err != nil {
			term.PrintError(err)
			return
		}
		term.PrintConversationHistory(ag.MessageHistory())
		term.PrintRewindComplete("restored code and conversation")
	case "2":
		ag.RewindConversation(n)
		term.PrintConversationHistory(ag.MessageHistory())
		term.PrintRewindComplete("restored conversation only")
	case "3":
		if err := ag.RewindCode(n); err != nil {
			term.PrintError(err)
			return
		}
		term.PrintRewindComplete("restored code only")
	case "4":
		if err := ag.SummarizeFrom(ctx, n, term); err != nil {
			term.PrintError(err)
			return
		}
		term.PrintConversationHistory(ag.MessageHistory())
		term.PrintRewindComplete("summarized from checkpoint")
	case "5":
		return
	default:
		term.PrintWarning("Invalid action.")
	}
}
