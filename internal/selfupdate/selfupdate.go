// Package selfupdate implements the --update flag: download
// a release binary, verify its checksum, and swap it in for the running
// executable, with rollback if anything after the download fails. Built
// on the standard library only.
package selfupdate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Release describes the artifact to install: a binary URL and the
// expected sha256 of its contents, hex-encoded.
type Release struct {
	Version   string
	BinaryURL string
	SHA256Hex string
}

const downloadTimeout = 2 * time.Minute

// Apply downloads release.BinaryURL, verifies its checksum against
// release.SHA256Hex, and atomically replaces the binary at execPath. On
// any failure after the download, the original binary is left untouched;
// Apply never leaves execPath in a half-written state.
func Apply(execPath string, release Release) error {
	tmp, err := download(release.BinaryURL)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer os.Remove(tmp)

	if err := verifyChecksum(tmp, release.SHA256Hex); err != nil {
		return fmt.Errorf("checksum mismatch: %w", err)
	}

	if err := os.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("chmod new binary: %w", err)
	}

	backup := execPath + ".bak"
	if err := os.Rename(execPath, backup); err != nil {
		return fmt.Errorf("back up current binary: %w", err)
	}

	if err := os.Rename(tmp, execPath); err != nil {
		// Roll back: restore the original binary so the user isn't left
		// without a working executable.
		if rbErr := os.Rename(backup, execPath); rbErr != nil {
			return fmt.Errorf("install failed (%s) AND rollback failed (%s) — manual recovery needed, backup at %s", err, rbErr, backup)
		}
		return fmt.Errorf("install new binary (rolled back): %w", err)
	}

	os.Remove(backup)
	return nil
}

func download(url string) (tmpPath string, err error) {
	client := &http.Client{Timeout: downloadTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "pilot-update-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func verifyChecksum(path, wantHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != wantHex {
		return fmt.Errorf("got %s, want %s", got, wantHex)
	}
	return nil
}

// githubAsset and githubRelease mirror the subset of GitHub's releases API
// response shape Fetch needs: asset name/URL pairs and a checksums file.
type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

// githubAPIBase is the GitHub API origin; overridden in tests to point
// at an httptest server.
var githubAPIBase = "https://api.github.com"

// Fetch queries GitHub's "latest release" endpoint for repo
// ("owner/name"), picks the binary asset matching the running platform
// (pilot_<GOOS>_<GOARCH>[.exe]) and a companion checksums.txt asset
// listing "<sha256>  <filename>" lines, and returns a Release ready for
// Apply. Both assets must be present or Fetch fails — there is no
// unverified-install path.
func Fetch(ctx context.Context, repo string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", githubAPIBase, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Release{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("github releases api: unexpected status %s", resp.Status)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Release{}, fmt.Errorf("decode release manifest: %w", err)
	}

	binName := fmt.Sprintf("pilot_%s_%s", runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}

	var binURL, checksumsURL string
	for _, a := range rel.Assets {
		switch a.Name {
		case binName:
			binURL = a.BrowserDownloadURL
		case "checksums.txt":
			checksumsURL = a.BrowserDownloadURL
		}
	}
	if binURL == "" {
		return Release{}, fmt.Errorf("no release asset for platform %s", binName)
	}
	if checksumsURL == "" {
		return Release{}, fmt.Errorf("release %s has no checksums.txt asset", rel.TagName)
	}

	sum, err := fetchChecksum(ctx, checksumsURL, binName)
	if err != nil {
		return Release{}, err
	}

	return Release{Version: rel.TagName, BinaryURL: binURL, SHA256Hex: sum}, nil
}

func fetchChecksum(ctx context.Context, url, wantName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch checksums.txt: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(body), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == wantName {
			return fields[0], nil
		}
	}
	return "", fmt.Errorf("no checksum entry for %s in checksums.txt", wantName)
}

// CurrentExecutable resolves the path of the running binary, following
// symlinks, for use as Apply's execPath argument.
func CurrentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return exe, nil
	}
	return resolved, nil
}
