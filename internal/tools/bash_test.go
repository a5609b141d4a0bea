package tools

import (
	"fmt"
	"strings"
	"testing"
)

func TestTruncateOutputRetainsErrorLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&b, "noise line %d\n", i)
	}
	b.WriteString("main.go:12: error: undefined symbol\n")
	b.WriteString("test FAILED in 0.2s\n")
	b.WriteString("panic: runtime error\n")

	out, truncated := truncateOutputLines(b.String(), 200, 20)
	if !truncated {
		t.Fatal("expected truncation")
	}
	for _, want := range []string{"error: undefined symbol", "FAILED", "panic: runtime error"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected retained diagnostic %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "noise line 240") {
		t.Error("expected non-matching overflow lines to be dropped")
	}
}

func TestTruncateOutputCapsRetainedLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "warning: issue %d\n", i)
	}

	out, _ := truncateOutputLines(b.String(), 200, 20)
	count := strings.Count(out, "warning:")
	if count > 20 {
		t.Errorf("expected at most 20 retained warning lines, got %d", count)
	}
}

func TestTruncateOutputNoTruncationUnderCap(t *testing.T) {
	in := "a\nb\nc\n"
	out, truncated := truncateOutputLines(in, 200, 20)
	if truncated || out != in {
		t.Errorf("expected passthrough, got truncated=%v out=%q", truncated, out)
	}
}

func TestTruncateLineGraphemeSafe(t *testing.T) {
	s := strings.Repeat("héllo wörld 🌍 ", 40)
	out := truncateLine(s, 200)
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("expected truncation marker, got %q", out)
	}
	// the truncated prefix must still be valid UTF-8 with no split scalar
	for _, r := range out {
		if r == '�' {
			t.Fatal("truncation split a multi-byte scalar")
		}
	}
}

func TestIsReadOnlyCommand(t *testing.T) {
	allowed := []string{
		"ls -la",
		"cat main.go",
		"grep -rn TODO .",
		"git status",
		"git log --oneline",
		"go list ./...",
	}
	for _, cmd := range allowed {
		if !IsReadOnlyCommand(cmd) {
			t.Errorf("expected %q to be allowed", cmd)
		}
	}

	denied := []string{
		"rm -rf .",
		"git push --force",
		"git commit -m x",
		"go build ./...",
		"cat main.go > copy.go",
		"ls; rm file",
		"ls && rm file",
		"cat `which sh`",
		"echo $(rm file)",
		"",
	}
	for _, cmd := range denied {
		if IsReadOnlyCommand(cmd) {
			t.Errorf("expected %q to be denied", cmd)
		}
	}
}
