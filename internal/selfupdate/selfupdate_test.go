// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// createTestArchive builds a tar.gz archive containing a fake uppies binary
// nested inside a release directory, matching the published archive layout.
func createTestArchive(t *testing.T, binaryContent []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	hdr := &tar.Header{
		Name:     "uppies-1.1.0/" + binaryName,
		Mode:     0o755,
		Size:     int64(len(binaryContent)),
		Typeflag: tar.TypeReg,
	}

	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("writing tar header: %v", err)
	}
	if _, err := tw.Write(binaryContent); err != nil {
		t.Fatalf("writing tar body: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}

	return buf.Bytes()
}

// feedServer serves a latest-release document and its assets, counting
// download hits.
type feedServer struct {
	*httptest.Server
	downloads int
}

// newFeedServer creates an httptest server for the release feed. files maps
// asset names to their bodies; each asset is listed in the release document
// with a download URL on the same server.
func newFeedServer(t *testing.T, tag string, files map[string][]byte) *feedServer {
	t.Helper()

	fs := &feedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/releases/latest") {
			assets := make([]githubAsset, 0, len(files))
			for name := range files {
				assets = append(assets, githubAsset{
					Name:               name,
					BrowserDownloadURL: fs.URL + "/download/" + name,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(githubRelease{TagName: tag, Assets: assets}); err != nil {
				t.Errorf("encoding release: %v", err)
			}
			return
		}

		if name, ok := strings.CutPrefix(r.URL.Path, "/download/"); ok {
			if body, exists := files[name]; exists {
				fs.downloads++
				_, _ = w.Write(body)
				return
			}
		}

		http.NotFound(w, r)
	}))
	t.Cleanup(fs.Close)

	return fs
}

// newTestUpdater wires an Updater to the feed server with a fixed platform
// and silenced output.
func newTestUpdater(t *testing.T, currentVersion string, srv *feedServer) (*Updater, *bytes.Buffer) {
	t.Helper()

	var stdout bytes.Buffer
	client := NewClient(WithBaseURL(srv.URL), WithRepo("example/uppies"))
	u := NewUpdater(currentVersion,
		WithClient(client),
		WithOutput(&stdout),
		WithLogger(log.New(io.Discard)),
		WithPlatform(func() Platform { return PlatformLinuxAMD64 }),
	)
	return u, &stdout
}

// overrideExecPath points the executable-path seams at a fake installed
// binary and restores them on cleanup.
func overrideExecPath(t *testing.T, path string) {
	t.Helper()

	origExec, origEval := osExecutable, evalSymlinks
	osExecutable = func() (string, error) { return path, nil }
	evalSymlinks = func(p string) (string, error) { return p, nil }
	t.Cleanup(func() {
		osExecutable, evalSymlinks = origExec, origEval
	})
}

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		goos, goarch string
		want         Platform
	}{
		{"linux", "amd64", PlatformLinuxAMD64},
		{"linux", "arm64", PlatformLinuxARM64},
		{"darwin", "amd64", PlatformMacAMD64},
		{"darwin", "arm64", PlatformMacARM64},
		{"windows", "amd64", PlatformUnknown},
		{"linux", "386", PlatformUnknown},
		{"freebsd", "arm64", PlatformUnknown},
	}

	for _, tc := range cases {
		if got := detectPlatform(tc.goos, tc.goarch); got != tc.want {
			t.Errorf("detectPlatform(%s, %s) = %q, want %q", tc.goos, tc.goarch, got, tc.want)
		}
	}
}

func TestPlatformAssetName(t *testing.T) {
	if got := PlatformMacARM64.AssetName(); got != "uppies-macos-aarch64.tar.gz" {
		t.Errorf("AssetName() = %q", got)
	}
}

func TestUnknownPlatformIsInvalid(t *testing.T) {
	ok, errs := PlatformUnknown.IsValid()
	if ok {
		t.Fatal("unknown platform reported as valid")
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnsupportedPlatform) {
		t.Errorf("errs = %v, want one UnsupportedPlatformError", errs)
	}
}

func TestFindAsset(t *testing.T) {
	rel := &Release{Assets: []Asset{
		{Name: "uppies-linux-x86_64.tar.gz", BrowserDownloadURL: "https://example.com/a"},
	}}

	asset, err := rel.FindAsset("uppies-linux-x86_64.tar.gz")
	if err != nil {
		t.Fatalf("FindAsset: %v", err)
	}
	if asset.BrowserDownloadURL != "https://example.com/a" {
		t.Errorf("URL = %q", asset.BrowserDownloadURL)
	}

	if _, err := rel.FindAsset("uppies-macos-aarch64.tar.gz"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("error = %v, want ErrAssetNotFound", err)
	}
}

func TestLatestRelease(t *testing.T) {
	srv := newFeedServer(t, "v1.4.0", map[string][]byte{
		"uppies-linux-x86_64.tar.gz": []byte("bin"),
	})

	client := NewClient(WithBaseURL(srv.URL), WithRepo("example/uppies"))
	rel, err := client.LatestRelease(context.Background())
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}
	if rel.TagName != "v1.4.0" {
		t.Errorf("TagName = %q, want v1.4.0", rel.TagName)
	}
	if len(rel.Assets) != 1 || rel.Assets[0].Name != "uppies-linux-x86_64.tar.gz" {
		t.Errorf("Assets = %+v", rel.Assets)
	}
}

func TestLatestReleaseNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	if _, err := client.LatestRelease(context.Background()); !errors.Is(err, ErrReleaseNotFound) {
		t.Errorf("error = %v, want ErrReleaseNotFound", err)
	}
}

func TestLatestReleaseRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.LatestRelease(context.Background())

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if rle.Limit != 60 {
		t.Errorf("Limit = %d, want 60", rle.Limit)
	}
}

func TestRunAlreadyUpToDate(t *testing.T) {
	srv := newFeedServer(t, "v1.0.0", map[string][]byte{
		"uppies-linux-x86_64.tar.gz": createTestArchive(t, []byte("new")),
	})
	u, stdout := newTestUpdater(t, "1.0.0", srv)

	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(stdout.String(), "Already up to date!") {
		t.Errorf("output = %q, want up-to-date line", stdout.String())
	}
	if srv.downloads != 0 {
		t.Errorf("downloads = %d, want 0", srv.downloads)
	}
}

func TestRunCurrentNewerThanRelease(t *testing.T) {
	srv := newFeedServer(t, "v1.0.0", nil)
	u, stdout := newTestUpdater(t, "2.0.0", srv)

	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(stdout.String(), "newer than latest release") {
		t.Errorf("output = %q, want newer-than line", stdout.String())
	}
	if srv.downloads != 0 {
		t.Errorf("downloads = %d, want 0", srv.downloads)
	}
}

// snapshotWorkDirs lists the self-update working directories currently in
// the system temp directory.
func snapshotWorkDirs(t *testing.T) map[string]bool {
	t.Helper()

	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("listing temp dir: %v", err)
	}

	dirs := make(map[string]bool)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), binaryName+"-update-") {
			dirs[e.Name()] = true
		}
	}
	return dirs
}

func TestRunReplacesBinary(t *testing.T) {
	newContent := []byte("#!/bin/sh\necho new binary\n")
	srv := newFeedServer(t, "v1.1.0", map[string][]byte{
		"uppies-linux-x86_64.tar.gz": createTestArchive(t, newContent),
	})
	preexisting := snapshotWorkDirs(t)

	installDir := t.TempDir()
	execPath := filepath.Join(installDir, binaryName)
	oldContent := []byte("#!/bin/sh\necho old binary\n")
	if err := os.WriteFile(execPath, oldContent, 0o755); err != nil {
		t.Fatalf("seeding installed binary: %v", err)
	}
	overrideExecPath(t, execPath)

	u, stdout := newTestUpdater(t, "1.0.0", srv)
	if err := u.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(execPath)
	if err != nil {
		t.Fatalf("reading installed binary: %v", err)
	}
	if !bytes.Equal(got, newContent) {
		t.Errorf("installed binary not replaced: %q", got)
	}

	info, err := os.Stat(execPath)
	if err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("installed binary is not executable")
	}

	backup, err := os.ReadFile(execPath + ".backup")
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if !bytes.Equal(backup, oldContent) {
		t.Errorf("backup does not hold the previous binary: %q", backup)
	}

	if !strings.Contains(stdout.String(), "Successfully updated to version 1.1.0") {
		t.Errorf("output = %q, want success line", stdout.String())
	}

	// No staged leftovers next to the binary.
	entries, err := os.ReadDir(installDir)
	if err != nil {
		t.Fatalf("listing install dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "staged") {
			t.Errorf("staged temp file left behind: %s", e.Name())
		}
	}

	// The download/extraction working directory is removed after the run.
	for name := range snapshotWorkDirs(t) {
		if !preexisting[name] {
			t.Errorf("working directory left behind: %s", name)
		}
	}

	if srv.downloads != 1 {
		t.Errorf("downloads = %d, want 1", srv.downloads)
	}
}

func TestRunAssetMissingForPlatform(t *testing.T) {
	srv := newFeedServer(t, "v1.1.0", map[string][]byte{
		"uppies-macos-aarch64.tar.gz": []byte("wrong platform"),
	})
	u, _ := newTestUpdater(t, "1.0.0", srv)

	if err := u.Run(context.Background()); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("error = %v, want ErrAssetNotFound", err)
	}
}

func TestRunUnsupportedPlatformIsFatal(t *testing.T) {
	srv := newFeedServer(t, "v1.1.0", nil)
	u, _ := newTestUpdater(t, "1.0.0", srv)
	u.platform = func() Platform { return PlatformUnknown }

	if err := u.Run(context.Background()); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("error = %v, want ErrUnsupportedPlatform", err)
	}
}

func TestRunRejectsUnparseableVersions(t *testing.T) {
	srv := newFeedServer(t, "v1.1.0", nil)

	u, _ := newTestUpdater(t, "dev", srv)
	if err := u.Run(context.Background()); err == nil {
		t.Error("Run accepted an unparseable current version")
	}

	srvBadTag := newFeedServer(t, "nightly", nil)
	u2, _ := newTestUpdater(t, "1.0.0", srvBadTag)
	if err := u2.Run(context.Background()); err == nil {
		t.Error("Run accepted an unparseable release tag")
	}
}

func TestExtractArchiveRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	content := []byte("evil")
	hdr := &tar.Header{
		Name:     "../escape",
		Mode:     0o644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("writing tar header: %v", err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatalf("writing tar body: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}

	destDir := filepath.Join(dir, "dest")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatalf("creating dest dir: %v", err)
	}
	if err := extractArchive(archivePath, destDir); err == nil {
		t.Error("extractArchive accepted a path-escaping entry")
	}
}

func TestWriteEntryRejectsOversizedEntry(t *testing.T) {
	dir := t.TempDir()

	target := filepath.Join(dir, "at-limit")
	if err := writeEntry(target, strings.NewReader("12345678"), 0o644, 8); err != nil {
		t.Errorf("at-limit entry rejected: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading extracted entry: %v", err)
	}
	if string(got) != "12345678" {
		t.Errorf("extracted content = %q, want full entry", got)
	}

	// One byte over the limit must fail the extraction, not truncate.
	over := filepath.Join(dir, "oversized")
	err = writeEntry(over, strings.NewReader("123456789"), 0o644, 8)
	if err == nil {
		t.Fatal("writeEntry accepted an oversized entry")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error = %v, want size-limit failure", err)
	}
}

func TestLocateBinaryMissing(t *testing.T) {
	if _, err := locateBinary(t.TempDir()); err == nil {
		t.Error("locateBinary succeeded in an empty tree")
	}
}

func ExamplePlatform_AssetName() {
	fmt.Println(PlatformLinuxAMD64.AssetName())
	// Output: uppies-linux-x86_64.tar.gz
}
