package symbols

import (
	"os"
	"path/filepath"
	"testing"
)

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "main.go"), []byte(`package main

func main() {
	run()
}

func run() {}

type Server struct{}

const MaxRetries = 3
`), 0644)
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "sub", "util.go"), []byte(`package sub

type Helper interface {
	Do()
}
`), 0644)
	os.WriteFile(filepath.Join(dir, "script.py"), []byte(`def handler(event):
    pass

class Worker:
    pass
`), 0644)
	os.MkdirAll(filepath.Join(dir, "node_modules", "dep"), 0755)
	os.WriteFile(filepath.Join(dir, "node_modules", "dep", "index.js"), []byte(`function shouldBeSkipped() {}`), 0644)
	return dir
}

func TestScanExtractsGoSymbols(t *testing.T) {
	dir := setupProject(t)
	idx, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	names := map[string]bool{}
	for _, s := range idx.symbols {
		names[s.Name] = true
	}
	for _, want := range []string{"main", "run", "Server", "MaxRetries", "Helper", "handler", "Worker"} {
		if !names[want] {
			t.Errorf("expected symbol %q to be found, names=%v", want, names)
		}
	}
	if names["shouldBeSkipped"] {
		t.Error("expected node_modules to be skipped")
	}
}

func TestResolveUnique(t *testing.T) {
	dir := setupProject(t)
	idx, _ := Scan(dir)

	path, ok := idx.Resolve("Server")
	if !ok {
		t.Fatal("expected Server to resolve")
	}
	if path != "main.go" {
		t.Errorf("expected main.go, got %s", path)
	}
}

func TestResolveUnknown(t *testing.T) {
	dir := setupProject(t)
	idx, _ := Scan(dir)

	_, ok := idx.Resolve("NoSuchSymbol")
	if ok {
		t.Error("expected unresolved symbol to return ok=false")
	}
}

func TestListCompactGroupsByPath(t *testing.T) {
	dir := setupProject(t)
	idx, _ := Scan(dir)

	out := idx.ListCompact()
	if out == "" {
		t.Fatal("expected non-empty compact listing")
	}
	for _, want := range []string{"main.go:", "sub/util.go:", "script.py:"} {
		if !contains(out, want) {
			t.Errorf("expected %q in listing, got: %s", want, out)
		}
	}
}

func TestCompactTableSingleFile(t *testing.T) {
	dir := setupProject(t)
	idx, _ := Scan(dir)

	out := idx.CompactTable("main.go")
	for _, want := range []string{"func main:", "func run:", "type Server:", "const MaxRetries:"} {
		if !contains(out, want) {
			t.Errorf("expected %q in table, got: %s", want, out)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
