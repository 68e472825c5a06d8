// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bradcypert/uppies/internal/issue"
	"github.com/bradcypert/uppies/internal/version"
)

const (
	// binaryName is the executable name inside release archives.
	binaryName = "uppies"

	// maxEntryBytes is the upper bound on a single extracted file (500 MB).
	// Prevents decompression bombs when unpacking a release archive.
	maxEntryBytes = 500 << 20
)

var (
	//nolint:gochecknoglobals // Test seam for os.Executable().
	osExecutable = os.Executable

	//nolint:gochecknoglobals // Test seam for filepath.EvalSymlinks().
	evalSymlinks = filepath.EvalSymlinks
)

type (
	// Updater runs the self-update pipeline: detect the platform, discover
	// the latest release, gate on versions, download and extract the matching
	// asset, and atomically replace the running binary. Every stage is
	// terminal on failure; there is no partial-success state.
	Updater struct {
		client         *Client
		currentVersion string
		stdout         io.Writer
		logger         *log.Logger
		platform       func() Platform
	}

	// UpdaterOption configures an Updater during construction.
	UpdaterOption func(*Updater)
)

// WithClient overrides the default release feed client.
func WithClient(c *Client) UpdaterOption {
	return func(u *Updater) {
		u.client = c
	}
}

// WithOutput overrides the writer for progress lines (default os.Stdout).
func WithOutput(w io.Writer) UpdaterOption {
	return func(u *Updater) {
		u.stdout = w
	}
}

// WithLogger overrides the diagnostic logger.
func WithLogger(l *log.Logger) UpdaterOption {
	return func(u *Updater) {
		u.logger = l
	}
}

// WithPlatform overrides platform detection, for tests.
func WithPlatform(f func() Platform) UpdaterOption {
	return func(u *Updater) {
		u.platform = f
	}
}

// NewUpdater creates an Updater for the given currently-running version.
// If no WithClient option is provided, a default Client is created.
func NewUpdater(currentVersion string, opts ...UpdaterOption) *Updater {
	u := &Updater{
		currentVersion: currentVersion,
		stdout:         os.Stdout,
		platform:       CurrentPlatform,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = NewClient()
	}
	if u.logger == nil {
		u.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "uppies"})
	}
	return u
}

// Run executes the full self-update pipeline. Equal or locally-newer versions
// are a successful no-op; everything else either replaces the binary or
// returns an error describing the failed stage.
func (u *Updater) Run(ctx context.Context) error {
	platform := u.platform()
	if ok, errs := platform.IsValid(); !ok {
		return errs[0]
	}

	fmt.Fprintln(u.stdout, "Checking for updates...")

	release, err := u.client.LatestRelease(ctx)
	if err != nil {
		return err
	}

	current, err := version.Parse(u.currentVersion)
	if err != nil {
		return fmt.Errorf("current version: %w", err)
	}
	latest, err := version.Parse(release.TagName)
	if err != nil {
		return fmt.Errorf("release version: %w", err)
	}

	fmt.Fprintf(u.stdout, "Current version: %s\n", current)
	fmt.Fprintf(u.stdout, "Latest version:  %s\n", latest)

	switch current.Compare(latest) {
	case 0:
		fmt.Fprintln(u.stdout, "Already up to date!")
		return nil
	case 1:
		// Guards against downgrading a pre-release environment onto the
		// latest published release.
		fmt.Fprintln(u.stdout, "Current version is newer than latest release")
		return nil
	}

	asset, err := release.FindAsset(platform.AssetName())
	if err != nil {
		return err
	}

	fmt.Fprintf(u.stdout, "\nDownloading %s %s...\n", binaryName, latest)

	// Process-unique working directory so concurrent invocations cannot
	// collide on extraction. Removed unconditionally at the end.
	tmpDir, err := os.MkdirTemp("", binaryName+"-update-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			u.logger.Warn("could not remove temp directory", "dir", tmpDir, "err", rmErr)
		}
	}()

	newBinary, err := u.downloadAndExtract(ctx, asset, tmpDir)
	if err != nil {
		return err
	}

	fmt.Fprintln(u.stdout, "Installing...")

	execPath, err := resolveExecPath()
	if err != nil {
		return err
	}

	if err := replaceBinary(newBinary, execPath); err != nil {
		return issue.NewErrorContext().
			WithOperation("replace binary").
			WithResource(execPath).
			WithSuggestion("Re-run with elevated permissions (sudo uppies self-update)").
			WithSuggestion("Or install uppies to a user-writable path").
			WithSuggestion("A backup of the previous binary is kept at " + execPath + ".backup").
			Wrap(err).
			BuildError()
	}

	fmt.Fprintf(u.stdout, "\n✓ Successfully updated to version %s!\n", latest)
	return nil
}

// downloadAndExtract fetches the asset into dir, unpacks it, and returns the
// path to the new binary inside the extracted tree. The downloaded archive is
// removed as soon as extraction finishes, successful or not.
func (u *Updater) downloadAndExtract(ctx context.Context, asset *Asset, dir string) (string, error) {
	archivePath := filepath.Join(dir, asset.Name)

	if err := u.downloadToFile(ctx, asset.BrowserDownloadURL, archivePath); err != nil {
		return "", err
	}

	extractErr := extractArchive(archivePath, dir)

	// The archive is large and no longer needed once extracted (or once
	// extraction has failed); best-effort removal either way.
	if rmErr := os.Remove(archivePath); rmErr != nil {
		u.logger.Warn("could not remove downloaded archive", "path", archivePath, "err", rmErr)
	}

	if extractErr != nil {
		return "", fmt.Errorf("extracting %s: %w", asset.Name, extractErr)
	}

	return locateBinary(dir)
}

// downloadToFile streams the asset at url into path.
func (u *Updater) downloadToFile(ctx context.Context, url, path string) (err error) {
	body, err := u.client.DownloadAsset(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// extractArchive unpacks the tar.gz at archivePath into destDir. Only regular
// files are materialized; entry paths are confined to destDir and entry sizes
// are bounded to keep hostile archives from escaping or filling the disk.
func extractArchive(archivePath, destDir string) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			return nil
		}
		if nextErr != nil {
			return fmt.Errorf("reading tar entry: %w", nextErr)
		}

		target, pathErr := sanitizeEntryPath(destDir, hdr.Name)
		if pathErr != nil {
			return pathErr
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if mkErr := os.MkdirAll(target, 0o755); mkErr != nil {
				return fmt.Errorf("creating directory %s: %w", target, mkErr)
			}
		case tar.TypeReg:
			if mkErr := os.MkdirAll(filepath.Dir(target), 0o755); mkErr != nil {
				return fmt.Errorf("creating directory for %s: %w", target, mkErr)
			}
			if wrErr := writeEntry(target, tr, hdr.FileInfo().Mode(), maxEntryBytes); wrErr != nil {
				return wrErr
			}
		default:
			// Symlinks and specials in a release archive are unexpected;
			// skip rather than materialize them.
		}
	}
}

// sanitizeEntryPath joins name onto destDir and rejects entries that would
// escape it.
func sanitizeEntryPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// writeEntry materializes one regular file from the tar stream. An entry
// larger than limit fails the extraction; truncating it would install a
// corrupt binary.
func writeEntry(target string, r io.Reader, mode fs.FileMode, limit int64) (err error) {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// Read one byte past the limit so an at-the-boundary entry is
	// distinguishable from an oversized one.
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Errorf("extracting %s: %w", target, err)
	}
	if n > limit {
		return fmt.Errorf("extracting %s: entry exceeds %d byte limit", target, limit)
	}
	return nil
}

// locateBinary finds the released binary inside the extracted tree. Matching
// by base name handles both flat archives and nested layouts.
func locateBinary(dir string) (string, error) {
	var found string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() && filepath.Base(path) == binaryName {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching extracted archive: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("binary %q not found in extracted archive", binaryName)
	}

	return found, nil
}

// replaceBinary installs newBinary at execPath. The previous binary is copied
// to execPath+".backup" first, then the new binary is staged next to the
// target and moved into place with a single rename. Renaming over the
// existing path (instead of deleting first) keeps a binary present at the
// install location at every instant.
func replaceBinary(newBinary, execPath string) error {
	info, err := os.Stat(execPath)
	if err != nil {
		return fmt.Errorf("reading current binary: %w", err)
	}

	if err := os.Chmod(newBinary, info.Mode().Perm()|0o755); err != nil {
		return fmt.Errorf("marking new binary executable: %w", err)
	}

	backupPath := execPath + ".backup"
	if err := copyFile(execPath, backupPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}

	// Stage in the target's directory so the final rename is a
	// same-filesystem, atomic move.
	staged, err := stageBinary(newBinary, filepath.Dir(execPath), info.Mode().Perm()|0o755)
	if err != nil {
		return err
	}

	if err := os.Rename(staged, execPath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("installing new binary: %w", err)
	}

	return nil
}

// stageBinary copies src into dir as a uniquely named temp file with the
// given mode and returns its path.
func stageBinary(src, dir string, mode fs.FileMode) (_ string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening new binary: %w", err)
	}
	defer func() { _ = in.Close() }() // read-only file handle

	tmp, err := os.CreateTemp(dir, binaryName+"-staged-*")
	if err != nil {
		return "", fmt.Errorf("staging new binary: %w", err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return "", fmt.Errorf("staging new binary: %w", err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return "", fmt.Errorf("staging new binary: %w", err)
	}

	return tmp.Name(), nil
}

// copyFile copies src to dst with the given mode, overwriting dst.
func copyFile(src, dst string, mode fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // read-only file handle

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// resolveExecPath returns the absolute, symlink-resolved path of the running
// binary.
func resolveExecPath() (string, error) {
	p, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("determining executable path: %w", err)
	}

	resolved, err := evalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", p, err)
	}

	return resolved, nil
}
