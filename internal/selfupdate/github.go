// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
// Prevents unbounded memory consumption from malicious or malformed responses.
const maxJSONResponseBytes = 10 << 20

var (
	// ErrReleaseNotFound is returned when the repository has no published release.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrAssetNotFound is returned when the latest release has no asset for
	// the requested platform. Distinct from network and parse failures so the
	// caller can tell "the release exists but wasn't built for you" apart
	// from transient errors.
	ErrAssetNotFound = errors.New("asset not found in release")
)

type (
	// RateLimitError is returned when the release feed's API rate limit is
	// exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release describes the latest published release: its version tag and
	// downloadable assets. All other feed fields are ignored.
	Release struct {
		TagName string
		Assets  []Asset
	}

	// Asset is one downloadable file attached to a release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
	}

	// githubRelease is the JSON wire format for a GitHub release response.
	githubRelease struct {
		TagName string        `json:"tag_name"`
		Assets  []githubAsset `json:"assets"`
	}

	// githubAsset is the JSON wire format for a release asset.
	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}

	// Client queries the GitHub Releases API for the latest release and
	// downloads its assets.
	Client struct {
		httpClient *http.Client
		repo       string // "owner/name"
		baseURL    string // API base URL, overridable for tests
		token      string // optional GITHUB_TOKEN for authenticated requests
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// FindAsset returns the asset with the given name, or ErrAssetNotFound.
func (r *Release) FindAsset(name string) (*Asset, error) {
	for i := range r.Assets {
		if r.Assets[i].Name == name {
			return &r.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAssetNotFound, name)
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *Client) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *Client) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRepo sets the "owner/name" repository the client reads releases from.
func WithRepo(repo string) ClientOption {
	return func(g *Client) {
		g.repo = repo
	}
}

// WithToken sets a personal access token for authenticated requests, which
// have a far higher rate limit than anonymous ones.
func WithToken(token string) ClientOption {
	return func(g *Client) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *Client) {
		g.userAgent = ua
	}
}

// NewClient creates a release feed client. Defaults: repo "bradcypert/uppies",
// baseURL "https://api.github.com", the default HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		repo:       "bradcypert/uppies",
		baseURL:    "https://api.github.com",
		userAgent:  "uppies/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease fetches the repository's latest published release.
func (c *Client) LatestRelease(ctx context.Context) (*Release, error) {
	latestURL := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, c.repo)

	resp, err := c.doRequest(ctx, latestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release for %s: %w", c.repo, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s has no published releases", ErrReleaseNotFound, c.repo)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching latest release for %s: unexpected status %d", c.repo, resp.StatusCode)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decoding release feed for %s: %w", c.repo, err)
	}

	assets := make([]Asset, 0, len(gr.Assets))
	for _, ga := range gr.Assets {
		assets = append(assets, Asset(ga))
	}

	return &Release{TagName: gr.TagName, Assets: assets}, nil
}

// DownloadAsset downloads the file at the given URL and returns the response
// body as a streaming reader. The caller must close it.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	resp, err := c.doRequest(ctx, assetURL)
	if err != nil {
		return nil, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("downloading asset %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, nil
}

// doRequest creates and executes a GET request with common API headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// Only attach the auth token when the request targets a known GitHub
	// host, so it cannot leak to a third-party CDN on redirect.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns a
// RateLimitError when the remaining quota is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}
	if rem > 0 {
		return nil
	}

	// Companion headers are best-effort; missing or malformed values default
	// to zero, which is fine for a diagnostic message.
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// isGitHubHost reports whether reqURL targets a known GitHub host. It matches
// the configured API host and, when that is api.github.com, also trusts
// github.com for asset downloads.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(reqURL.Host, base.Host) {
		return true
	}
	return strings.EqualFold(base.Host, "api.github.com") && strings.EqualFold(reqURL.Host, "github.com")
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
