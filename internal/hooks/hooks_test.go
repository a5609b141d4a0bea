package hooks

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestRunAppendsMarkerOutputAndExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bash hook syntax")
	}
	r := NewRunner(t.TempDir(), map[Event][]string{
		OnEdit: {"echo ERR >&2; exit 1"},
	}, false)

	out := r.Run(context.Background(), OnEdit)
	if !strings.Contains(out, Marker) {
		t.Errorf("expected hook marker in output, got: %q", out)
	}
	if !strings.Contains(out, "ERR") {
		t.Errorf("expected hook stderr captured, got: %q", out)
	}
	if !strings.Contains(out, "exit status 1") {
		t.Errorf("expected non-zero exit reported, got: %q", out)
	}
}

func TestRunMultipleCommandsInOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bash hook syntax")
	}
	r := NewRunner(t.TempDir(), map[Event][]string{
		OnEdit: {"echo first", "echo second"},
	}, false)

	out := r.Run(context.Background(), OnEdit)
	fi, si := strings.Index(out, "first"), strings.Index(out, "second")
	if fi < 0 || si < 0 || fi > si {
		t.Errorf("expected ordered hook output, got: %q", out)
	}
}

func TestRunNoCommandsIsNoop(t *testing.T) {
	r := NewRunner(t.TempDir(), map[Event][]string{}, false)
	if out := r.Run(context.Background(), OnEdit); out != "" {
		t.Errorf("expected empty output, got: %q", out)
	}
}

func TestHooksDisabledKillSwitch(t *testing.T) {
	r := NewRunner(t.TempDir(), map[Event][]string{
		OnEdit: {"echo should not run"},
	}, true)
	if out := r.Run(context.Background(), OnEdit); out != "" {
		t.Errorf("expected disabled runner to be silent, got: %q", out)
	}
}

func TestNilRunnerIsSafe(t *testing.T) {
	var r *Runner
	if out := r.Run(context.Background(), OnEdit); out != "" {
		t.Errorf("expected nil runner no-op, got: %q", out)
	}
}
