package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestApplyVerifiesChecksumAndSwapsBinary(t *testing.T) {
	content := []byte("new binary contents")
	sum := sha256.Sum256(content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	exe := filepath.Join(dir, "pilot")
	if err := os.WriteFile(exe, []byte("old binary"), 0755); err != nil {
		t.Fatal(err)
	}

	err := Apply(exe, Release{Version: "v1.2.3", BinaryURL: srv.URL, SHA256Hex: hex.EncodeToString(sum[:])})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("binary content = %q, want %q", got, content)
	}
	if _, err := os.Stat(exe + ".bak"); !os.IsNotExist(err) {
		t.Error("backup file should be removed on success")
	}
}

func TestApplyRejectsChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new binary contents"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	exe := filepath.Join(dir, "pilot")
	original := []byte("old binary")
	if err := os.WriteFile(exe, original, 0755); err != nil {
		t.Fatal(err)
	}

	err := Apply(exe, Release{Version: "v1.2.3", BinaryURL: srv.URL, SHA256Hex: "0000000000000000000000000000000000000000000000000000000000000000"})
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	got, _ := os.ReadFile(exe)
	if string(got) != string(original) {
		t.Error("original binary must be left untouched on checksum failure")
	}
}

func TestFetchPicksPlatformAssetAndChecksum(t *testing.T) {
	binName := fmt.Sprintf("pilot_%s_%s", runtime.GOOS, runtime.GOARCH)
	sum := sha256.Sum256([]byte("binary-bytes"))
	sumHex := hex.EncodeToString(sum[:])

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lowkaihon/pilot/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v9.9.9","assets":[
			{"name":%q,"browser_download_url":"http://example.invalid/bin"},
			{"name":"checksums.txt","browser_download_url":"%s/checksums.txt"}
		]}`, binName, "http://"+r.Host)
	})
	mux.HandleFunc("/checksums.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s  %s\nabc123  some_other_binary\n", sumHex, binName)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	origTransport := githubAPIBase
	githubAPIBase = srv.URL
	defer func() { githubAPIBase = origTransport }()

	rel, err := Fetch(context.Background(), "lowkaihon/pilot")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if rel.Version != "v9.9.9" {
		t.Errorf("Version = %q, want v9.9.9", rel.Version)
	}
	if rel.SHA256Hex != sumHex {
		t.Errorf("SHA256Hex = %q, want %q", rel.SHA256Hex, sumHex)
	}
}

func TestFetchFailsWithoutMatchingPlatformAsset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/lowkaihon/pilot/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.0.0","assets":[{"name":"pilot_plan9_arm","browser_download_url":"http://example.invalid/bin"}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	orig := githubAPIBase
	githubAPIBase = srv.URL
	defer func() { githubAPIBase = orig }()

	if _, err := Fetch(context.Background(), "lowkaihon/pilot"); err == nil {
		t.Fatal("expected error for missing platform asset")
	}
}
