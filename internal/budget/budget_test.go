package budget

import (
	"strings"
	"testing"

	"github.com/lowkaihon/pilot/internal/history"
	llm "github.com/lowkaihon/pilot/internal/llmclient"
)

func bigBody(n int) string {
	return strings.Repeat("x", n)
}

func TestCompressToFitUnderBudgetIsNoop(t *testing.T) {
	s := history.New("sys", "task")
	res := CompressToFit(s, 100000)
	if res.ResultsCompressed != 0 || res.TurnsDropped != 0 {
		t.Errorf("expected no-op under budget, got %+v", res)
	}
}

func TestCompressToFitPass1CompressesUnprotected(t *testing.T) {
	s := history.New("sys", "task")
	s.AppendToolResult("c1", "search", "fp1", bigBody(4000), "short summary")
	s.AppendAssistant(assistantMsg())
	// same (tool, fingerprint) key as c1, so c1 loses its protection
	s.AppendToolResult("c2", "search", "fp1", bigBody(4000), "short summary 2")

	res := CompressToFit(s, 500) // tiny window forces compression
	if res.ResultsCompressed == 0 {
		t.Error("expected at least one result compressed")
	}
	if res.TokensAfter >= res.TokensBefore {
		t.Errorf("expected tokens to shrink, before=%d after=%d", res.TokensBefore, res.TokensAfter)
	}
}

func TestCompressToFitSkipsProtectedResult(t *testing.T) {
	s := history.New("sys", "task")
	// only one result, and it's protected (most recent for its key) —
	// pass 1 must not compress it, pass 2 may still trim turns around it.
	s.AppendToolResult("c1", "search", "fp1", bigBody(4000), "short summary")

	CompressToFit(s, 500)
	body, ok := s.PriorResult("search", "fp1")
	if !ok {
		t.Fatal("expected protected result to remain findable")
	}
	if body != bigBody(4000) {
		t.Error("expected protected result's full body to be unchanged")
	}
}

func TestCompressToFitIdempotent(t *testing.T) {
	s := history.New("sys", "task")
	s.AppendToolResult("c1", "search", "fp1", bigBody(4000), "short summary")
	s.AppendAssistant(assistantMsg())
	s.AppendToolResult("c2", "search", "fp2", bigBody(4000), "short summary 2")

	first := CompressToFit(s, 500)
	second := CompressToFit(s, 500)
	if second.ResultsCompressed != 0 || second.TurnsDropped != 0 {
		t.Errorf("expected idempotent second pass, got %+v (first was %+v)", second, first)
	}
}

func TestCompressToFitNeverDropsIndexZero(t *testing.T) {
	s := history.New("sys", "task")
	for i := 0; i < 5; i++ {
		s.AppendUser(bigBody(2000))
		s.AppendAssistant(assistantMsg())
	}
	CompressToFit(s, 10) // absurdly small window
	msgs := s.Messages()
	if msgs[0].Role != "system" {
		t.Fatal("expected system message at index 0 to survive")
	}
}

func assistantMsg() llm.Message {
	text := "ok"
	return llm.Message{Role: "assistant", Content: &text}
}

func TestLoopDetectorCatchesSecondConsecutiveRepeat(t *testing.T) {
	d := NewLoopDetector(8)
	if d.Check("bash", "fp1") {
		t.Fatal("first call should never be flagged")
	}
	d.Record("bash", "fp1")
	if !d.Check("bash", "fp1") {
		t.Fatal("second identical consecutive call should be flagged")
	}
}

func TestLoopDetectorAllowsDifferentCallsBetween(t *testing.T) {
	d := NewLoopDetector(8)
	d.Record("bash", "fp1")
	if d.Check("bash", "fp2") {
		t.Fatal("different fingerprint should not be flagged")
	}
	d.Record("bash", "fp2")
	d.Record("bash", "fp1")
	if d.Check("bash", "fp2") {
		t.Fatal("non-consecutive repeat should not be flagged")
	}
}

func TestAssemblePreambleDropsLeastRecentFirst(t *testing.T) {
	items := []PreambleItem{
		{Label: "old", Body: bigBody(400), Recency: 1},
		{Label: "new", Body: bigBody(400), Recency: 2},
	}
	out := AssemblePreamble(items, 50) // forces at least one drop
	if strings.Contains(out, "old:") {
		t.Error("expected least-recent item to be dropped first")
	}
}

func TestAssemblePreambleKeepsEverythingUnderBudget(t *testing.T) {
	items := []PreambleItem{
		{Label: "a", Body: "short", Recency: 1},
		{Label: "b", Body: "also short", Recency: 2},
	}
	out := AssemblePreamble(items, 1000)
	if !strings.Contains(out, "a:") || !strings.Contains(out, "b:") {
		t.Error("expected both items retained under generous budget")
	}
}
